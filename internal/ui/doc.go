// Package ui styles terminal output with lipgloss.
//
// The package-level palette renders titles, confirmations ([Success]), warnings, errors and help text.
// Styles degrade to plain text when the output is not a terminal, since lipgloss detects the color profile.
package ui
