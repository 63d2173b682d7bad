package cmd

import (
	"errors"
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/stepwise/internal/store"
)

var (
	statsAccent = lipgloss.Color("#8B5CF6")
	statsGood   = lipgloss.Color("#22C55E")
	statsDim    = lipgloss.Color("#94A3B8")

	statsTitle = lipgloss.NewStyle().Bold(true).Foreground(statsAccent)
	statsLabel = lipgloss.NewStyle().Foreground(statsDim).Width(16)
	statsValue = lipgloss.NewStyle().Bold(true)
	statsBar   = lipgloss.NewStyle().Foreground(statsGood)
	statsCard  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(statsDim).
			Padding(0, 2)
)

var statsCmd = &cobra.Command{
	Use:   "stats <username>",
	Short: "Show a learner's progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		u, err := s.Users().GetByUsername(ctx, args[0])
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no learner named %q", args[0])
		}
		if err != nil {
			return fmt.Errorf("load learner: %w", err)
		}
		progress, err := s.Progress().ListForUser(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("load progress: %w", err)
		}
		badges, err := s.Badges().ListForUser(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("load badges: %w", err)
		}
		sessions, err := s.Sessions().ListForUser(ctx, u.ID, 5)
		if err != nil {
			return fmt.Errorf("load sessions: %w", err)
		}

		topicNames := map[int64]string{}
		topics, err := s.Catalog().Topics(ctx, "")
		if err != nil {
			return fmt.Errorf("load topics: %w", err)
		}
		for _, t := range topics {
			topicNames[t.ID] = t.Name
		}

		fmt.Println(renderStats(u, progress, badges, sessions, topicNames))
		return nil
	},
}

func renderStats(u *store.User, progress []store.UserProgress, badges []store.UserBadge,
	sessions []store.UserSession, topicNames map[int64]string) string {
	var b strings.Builder
	b.WriteString(statsTitle.Render(fmt.Sprintf("%s (@%s), grade %d", u.Name, u.Username, u.Grade)))
	b.WriteString("\n\n")
	row := func(label, value string) {
		b.WriteString(statsLabel.Render(label) + statsValue.Render(value) + "\n")
	}
	row("XP", fmt.Sprint(u.XPPoints))
	row("Streak", fmt.Sprintf("%d days", u.Streak))
	row("Badges", fmt.Sprint(len(badges)))

	if len(progress) > 0 {
		b.WriteString("\n" + statsTitle.Render("Mastery") + "\n")
		for _, p := range progress {
			name := topicNames[p.TopicID]
			if name == "" {
				name = fmt.Sprintf("topic %d", p.TopicID)
			}
			row(truncate(name, 15), fmt.Sprintf("%s %3d%%", masteryBar(p.MasteryPercentage), p.MasteryPercentage))
		}
	}

	if len(sessions) > 0 {
		b.WriteString("\n" + statsTitle.Render("Recent sessions") + "\n")
		for _, s := range sessions {
			when := s.StartTime.Local().Format("Jan 2 15:04")
			result := "in progress"
			if s.EndTime != nil {
				result = fmt.Sprintf("%d/%d correct, +%d XP", s.QuestionsCorrect, s.QuestionsAttempted, s.XPEarned)
			}
			row(when, result)
		}
	}
	return statsCard.Render(strings.TrimRight(b.String(), "\n"))
}

// masteryBar draws a 10-cell bar for a 0..100 percentage.
func masteryBar(pct int) string {
	filled := min(max(pct, 0), 100) / 10
	return statsBar.Render(strings.Repeat("█", filled)) + strings.Repeat("░", 10-filled)
}
