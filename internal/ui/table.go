package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

// RoomTableItem represents a room in the table
type RoomTableItem struct {
	Index       int
	ID          string
	Server      string
	Application string
	Version     string
	Locked      bool
}

func (item RoomTableItem) row() []string {
	locked := ""
	if item.Locked {
		locked = "yes"
	}
	return []string{
		strconv.Itoa(item.Index),
		truncate(item.ID, 36),
		item.Server,
		truncate(item.Application, 30),
		item.Version,
		locked,
	}
}

var roomHeaders = []string{"#", "ID", "Server", "Application", "Version", "Password"}

// RoomTableView renders rooms as a styled terminal table.
func RoomTableView(items []RoomTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No rooms")
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, item.row())
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(roomHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RoomTextView renders rooms as an uncolored table, for pipes and logs.
func RoomTextView(items []RoomTableItem) string {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleLight)

	header := make(prettytable.Row, len(roomHeaders))
	for i, h := range roomHeaders {
		header[i] = h
	}
	t.AppendHeader(header)

	for _, item := range items {
		cells := item.row()
		row := make(prettytable.Row, len(cells))
		for i, c := range cells {
			row[i] = c
		}
		t.AppendRow(row)
	}
	t.AppendFooter(prettytable.Row{"", fmt.Sprintf("%d rooms", len(items))})

	return t.Render()
}

// RoomInfoView renders the box shown after a room is created.
func RoomInfoView(item RoomTableItem) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(Success).
		Padding(1, 2)

	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s\n%s Server:   %s\n   App:      %s %s",
		IconSuccess,
		IconRoom, BoldStyle.Foreground(Primary).Render(item.ID),
		IconServer, MutedStyle.Render(item.Server),
		item.Application, MutedStyle.Render(item.Version),
	)
	if item.Locked {
		content += fmt.Sprintf("\n%s Password protected", IconLock)
	}

	return boxStyle.Render(content)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
