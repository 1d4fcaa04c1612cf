package styles

// NewDefaultTheme creates the dark admin-inspired theme.
func NewDefaultTheme() *Theme {
	return &Theme{
		Name:   "default",
		IsDark: true,

		Primary:   ParseHex("#36b37e"),
		Secondary: ParseHex("#5bc0be"),
		Tertiary:  ParseHex("#3a4750"),
		Accent:    ParseHex("#95bf47"),

		BgBase:    ParseHex("#1a1c1d"),
		BgSubtle:  ParseHex("#232527"),
		BgOverlay: ParseHex("#2c2f31"),

		FgBase:   ParseHex("#e3e5e7"),
		FgMuted:  ParseHex("#8c9196"),
		FgSubtle: ParseHex("#5c5f62"),

		Border:      ParseHex("#3a4750"),
		BorderFocus: ParseHex("#95bf47"),

		Success: ParseHex("#36b37e"),
		Error:   ParseHex("#e0533d"),
		Warning: ParseHex("#ffc453"),
		Info:    ParseHex("#5bc0be"),
	}
}
