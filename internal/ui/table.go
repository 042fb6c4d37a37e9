package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/imcmurray/ShadowWhisper-sub001/internal/room"
)

// RosterView renders the current participant list.
func RosterView(snap room.Snapshot) string {
	participants := snap.Roster()
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})

	headers := []string{"#", "Name", "Joined", "Role"}
	rows := make([][]string, 0, len(participants)+1)

	rows = append(rows, []string{"0", "you", "", roleLabel(snap.SelfID == snap.CreatorID)})
	for i, p := range participants {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			p.DisplayName,
			p.JoinedAt.Local().Format(time.Kitchen),
			roleLabel(p.IsCreator),
		})
	}

	return renderTable(headers, rows)
}

// PendingView renders join requests awaiting the creator's decision.
func PendingView(snap room.Snapshot) string {
	if len(snap.Pending) == 0 {
		return MutedStyle.Render("No pending requests")
	}

	pending := make([]room.PendingJoinRequest, 0, len(snap.Pending))
	for _, req := range snap.Pending {
		pending = append(pending, req)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})

	headers := []string{"Name", "Requested", "ID"}
	rows := make([][]string, 0, len(pending))
	for _, req := range pending {
		rows = append(rows, []string{
			req.DisplayName,
			req.RequestedAt.Local().Format(time.Kitchen),
			req.RequesterID,
		})
	}

	return renderTable(headers, rows)
}

func roleLabel(creator bool) string {
	if creator {
		return "creator"
	}
	return "member"
}

func renderTable(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
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

// RoomInfoView renders the box shown after creating a room.
func RoomInfoView(code, name string, approvalMode bool) string {
	mode := "open"
	if approvalMode {
		mode = "approval required"
	}
	content := fmt.Sprintf("%s Room Created!\n\n%s Code:  %s\n%s Name:  %s\n%s Join:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(code),
		IconRoom, name,
		IconPeer, MutedStyle.Render(mode),
	)
	return RoomBoxStyle.Render(content)
}
