package ui

import "github.com/gdamore/tcell/v2"

// TokyoNight color palette
var (
	// Background colors
	ColorBg          = tcell.NewRGBColor(0x1a, 0x1b, 0x26) // #1a1b26 - Dark background
	ColorBgDark      = tcell.NewRGBColor(0x16, 0x16, 0x1e) // #16161e - Darker background
	ColorBgHighlight = tcell.NewRGBColor(0x29, 0x2e, 0x42) // #292e42 - Highlighted background

	// Foreground colors
	ColorFg       = tcell.NewRGBColor(0xc0, 0xca, 0xf5) // #c0caf5 - Default text
	ColorFgDark   = tcell.NewRGBColor(0x56, 0x5f, 0x89) // #565f89 - Dimmed text
	ColorFgGutter = tcell.NewRGBColor(0x3b, 0x42, 0x61) // #3b4261 - Gutter/border

	// Accent colors
	ColorBlue    = tcell.NewRGBColor(0x7a, 0xa2, 0xf7) // #7aa2f7 - Primary blue
	ColorBlue7   = tcell.NewRGBColor(0x39, 0x4b, 0x70) // #394b70 - Dark blue
	ColorCyan    = tcell.NewRGBColor(0x7d, 0xcf, 0xff) // #7dcfff - Cyan
	ColorGreen   = tcell.NewRGBColor(0x9e, 0xce, 0x6a) // #9ece6a - Green
	ColorMagenta = tcell.NewRGBColor(0xbb, 0x9a, 0xf7) // #bb9af7 - Purple/Magenta
	ColorOrange  = tcell.NewRGBColor(0xff, 0x9e, 0x64) // #ff9e64 - Orange
	ColorRed     = tcell.NewRGBColor(0xf7, 0x76, 0x8e) // #f7768e - Red
	ColorRed1    = tcell.NewRGBColor(0xdb, 0x4b, 0x4b) // #db4b4b - Dark red
	ColorYellow  = tcell.NewRGBColor(0xe0, 0xaf, 0x68) // #e0af68 - Yellow

	// UI-specific color mappings
	ColorSelection = ColorBgHighlight // Selected item background
	ColorHeader    = ColorBlue        // Headers
	ColorHighlight = ColorYellow      // Search highlights
	ColorPlaying   = ColorGreen       // Currently playing indicator
	ColorPaused    = ColorYellow      // Paused indicator
	ColorError     = ColorRed         // Error messages
	ColorTag       = ColorMagenta     // Tags in the detail pane
	ColorChapter   = ColorCyan        // Chapter time labels
	ColorDimmed    = ColorFgDark      // Dimmed text
	ColorBright    = ColorFg          // Bright text
	ColorDialog    = ColorBlue7       // Dialog background
	ColorDanger    = ColorRed1        // Destructive confirmation background
)

var (
	styleDefault   = tcell.StyleDefault.Background(ColorBg).Foreground(ColorFg)
	styleStatusBar = tcell.StyleDefault.Background(ColorBgHighlight).Foreground(ColorFg)
	styleDimmed    = styleDefault.Foreground(ColorDimmed)
	styleHeader    = styleDefault.Foreground(ColorHeader).Bold(true)
)
