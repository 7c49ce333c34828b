package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"nftmarket/internal/catalog"
	"nftmarket/internal/eventstore"
	"nftmarket/internal/wallet"
)

var (
	colorPrimary = lipgloss.Color("5")
	colorMuted   = lipgloss.Color("8")
	colorSuccess = lipgloss.Color("2")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(12)
)

func renderAssets(assets []*catalog.Asset) string {
	if len(assets) == 0 {
		return mutedStyle.Render("No assets found.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "TITLE", "OWNER", "PRICE (ETH)")
	for _, a := range assets {
		t.Row(wallet.Truncate(a.ID), a.Title, wallet.Truncate(a.Owner), a.Price)
	}
	return t.String()
}

func renderAsset(a *catalog.Asset) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(a.Title))
	b.WriteString("\n")
	if a.Description != "" {
		b.WriteString(a.Description)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("ID", a.ID)
	row("Creator", a.Creator)
	row("Owner", a.Owner)
	row("Price", a.Price+" ETH")
	row("Image", a.ImageURL)
	for _, img := range a.AdditionalImages {
		row("", img)
	}
	row("Minted", a.CreatedAt.Format(time.RFC1123))

	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Ownership history"))
	b.WriteString("\n")
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("OWNER", "ACQUIRED", "PRICE (ETH)")
	for _, rec := range a.History {
		t.Row(wallet.Truncate(rec.Owner), rec.AcquiredAt.Format(time.RFC1123), rec.Price)
	}
	b.WriteString(t.String())
	return b.String()
}

func renderActivity(events []eventstore.Event) string {
	if len(events) == 0 {
		return mutedStyle.Render("No activity.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "EVENT", "AT", "DETAIL")
	for _, e := range events {
		t.Row(fmt.Sprintf("%d", e.Version), e.EventType, e.CreatedAt.Format(time.RFC1123), string(e.EventData))
	}
	return t.String()
}
