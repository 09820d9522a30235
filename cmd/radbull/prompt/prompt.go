// Package prompt collects the run parameters from the operator: the
// study date to search and how many reports to process.
package prompt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	lineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))
)

// ParseDate interprets an operator-entered search date. Accepted forms
// are YYYY/MM/DD and MM/DD (current year), with `-` tolerated as a
// separator. The boolean reports whether the input parsed as an explicit
// date; blank or invalid input returns now.
func ParseDate(input string, now time.Time) (time.Time, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return now, false
	}
	parts := strings.Split(strings.ReplaceAll(input, "-", "/"), "/")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return now, false
		}
		nums = append(nums, n)
	}

	var year, month, day int
	switch len(nums) {
	case 3:
		year, month, day = nums[0], nums[1], nums[2]
	case 2:
		year, month, day = now.Year(), nums[0], nums[1]
	default:
		return now, false
	}
	if year < 1 || year > 9999 {
		return now, false
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		// time.Date normalizes month 13 to January; the operator typed
		// an impossible date.
		return now, false
	}
	return date, true
}

// ParseReportCount interprets the requested report count. The boolean
// reports whether the input was numeric; counts below one are raised to
// one.
func ParseReportCount(input string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 1, false
	}
	if n < 1 {
		return 1, true
	}
	return n, true
}

// AskDate prompts for the study date. Blank and malformed input fall
// back to today with an explanatory line, never an error.
func AskDate(now time.Time) (time.Time, error) {
	banner("DATE SELECTION")
	fmt.Printf("Today's date: %d/%02d/%02d\n\n", now.Year(), int(now.Month()), now.Day())

	var input string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("date").
				Title("Date to search").
				Description("Format: YYYY/MM/DD or MM/DD. Press Enter for today.").
				Value(&input),
		),
	).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return time.Time{}, fmt.Errorf("date selection: %w", err)
	}

	date, parsed := ParseDate(input, now)
	switch {
	case strings.TrimSpace(input) == "":
		fmt.Printf("Using today's date: %d/%02d/%02d\n", date.Year(), int(date.Month()), date.Day())
	case parsed:
		fmt.Printf("Using selected date: %d/%02d/%02d\n", date.Year(), int(date.Month()), date.Day())
	default:
		fmt.Println("Invalid date format.")
		fmt.Printf("Falling back to today's date: %d/%02d/%02d\n", date.Year(), int(date.Month()), date.Day())
	}
	return date, nil
}

// AskCount prompts for the number of reports to process.
func AskCount() (int, error) {
	banner("NUMBER OF REPORTS")

	var input string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("reports").
				Title("How many reports do you want to process?").
				Description("If more than available, it will stop at the last one.").
				Value(&input),
		),
	).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("report count selection: %w", err)
	}

	count, numeric := ParseReportCount(input)
	if !numeric {
		fmt.Println("Invalid number. Defaulting to 1.")
	}
	return count, nil
}

func banner(title string) {
	line := strings.Repeat("=", 60)
	fmt.Println()
	fmt.Println(lineStyle.Render(line))
	fmt.Println(bannerStyle.Render(title))
	fmt.Println(lineStyle.Render(line))
}
