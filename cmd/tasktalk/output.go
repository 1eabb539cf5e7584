package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/tasktalk/pkg/models"
)

const (
	colorOK   = color.FgGreen
	colorWarn = color.FgYellow
	colorErr  = color.FgRed
)

// printStatus prints a status line with a colored symbol.
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

// writeTasks renders tasks as an aligned list.
func writeTasks(w io.Writer, tasks []models.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No todos.")
		return
	}

	idWidth := len(fmt.Sprint(tasks[0].ID))
	for _, t := range tasks {
		if n := len(fmt.Sprint(t.ID)); n > idWidth {
			idWidth = n
		}
	}

	id := color.New(color.FgCyan)
	dim := color.New(color.FgHiBlack)
	for _, t := range tasks {
		fmt.Fprintf(w, "%s %s %s\n",
			id.Sprintf("%*d", idWidth, t.ID),
			t.Title,
			dim.Sprint(t.CreatedAt.Local().Format("2006-01-02 15:04")))
		if d := strings.TrimSpace(t.DescriptionText()); d != "" {
			fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", idWidth), dim.Sprint(d))
		}
	}
}

// writeHits renders semantic search results with their scores.
func writeHits(w io.Writer, hits []models.SearchHit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "No matching todos found.")
		return
	}
	score := color.New(color.FgYellow)
	for _, h := range hits {
		fmt.Fprintf(w, "%s [%d] %s", score.Sprintf("%.2f", h.RelevanceScore), h.ID, h.Title)
		if h.Description != "" {
			fmt.Fprintf(w, " - %s", h.Description)
		}
		fmt.Fprintln(w)
	}
}
