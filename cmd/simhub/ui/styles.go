package ui

import "github.com/charmbracelet/lipgloss"

// Theme is the palette the shell renders with. Two built-in themes follow the
// hub's persisted theme field; mini-apps carry their own accent colors.
type Theme struct {
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dock      lipgloss.Style
	DockItem  lipgloss.Style
	DockHot   lipgloss.Style
	DockState lipgloss.Style
	Status    lipgloss.Style
	Viewport  lipgloss.Style
	ErrText   lipgloss.Style

	ToastInfo      lipgloss.Style
	ToastOK        lipgloss.Style
	ToastWarn      lipgloss.Style
	ToastBad       lipgloss.Style
	ToastLegendary lipgloss.Style
}

func themeFor(name string) Theme {
	if name == "light" {
		return lightTheme()
	}
	return darkTheme()
}

func darkTheme() Theme {
	toast := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Header:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Dock:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		DockItem:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1),
		DockHot:   lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("212")).Padding(0, 1).Bold(true),
		DockState: lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Viewport:  lipgloss.NewStyle().Padding(1, 2),
		ErrText:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		ToastInfo:      toast.Foreground(lipgloss.Color("252")).Background(lipgloss.Color("238")),
		ToastOK:        toast.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")),
		ToastWarn:      toast.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("214")),
		ToastBad:       toast.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("196")),
		ToastLegendary: toast.Foreground(lipgloss.Color("0")).Background(lipgloss.Color("213")),
	}
}

func lightTheme() Theme {
	toast := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	return Theme{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("162")),
		Header:    lipgloss.NewStyle().Foreground(lipgloss.Color("235")),
		Dock:      lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		DockItem:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Padding(0, 1),
		DockHot:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("162")).Padding(0, 1).Bold(true),
		DockState: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Viewport:  lipgloss.NewStyle().Padding(1, 2),
		ErrText:   lipgloss.NewStyle().Foreground(lipgloss.Color("124")).Bold(true),

		ToastInfo:      toast.Foreground(lipgloss.Color("235")).Background(lipgloss.Color("252")),
		ToastOK:        toast.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("28")),
		ToastWarn:      toast.Foreground(lipgloss.Color("235")).Background(lipgloss.Color("214")),
		ToastBad:       toast.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("124")),
		ToastLegendary: toast.Foreground(lipgloss.Color("255")).Background(lipgloss.Color("92")),
	}
}
