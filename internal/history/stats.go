package history

import (
	"sort"
	"time"

	"therapy-connect/internal/models"
)

// ComputeStats derives the history dashboard numbers. Calendar days are taken in loc.
func ComputeStats(sessions []models.SavedSession, now time.Time, loc *time.Location) models.SessionStats {
	if loc == nil {
		loc = time.UTC
	}

	stats := models.SessionStats{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return stats
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)

	var confidence float64
	for _, s := range sessions {
		if !s.CreatedAt.Before(weekAgo) {
			stats.WeekSessions++
		}
		if !s.CreatedAt.Before(monthAgo) {
			stats.MonthSessions++
		}
		stats.TotalDurationMs += s.DurationMs
		confidence += s.ConfidenceScore
	}
	stats.AvgDurationMs = stats.TotalDurationMs / int64(len(sessions))
	stats.AvgConfidence = confidence / float64(len(sessions))

	newest := newestFirst(sessions)
	stats.CurrentStreak = currentStreak(newest, now, loc)
	stats.MostActiveDay = mostActiveDay(newest, loc)
	return stats
}

func newestFirst(sessions []models.SavedSession) []models.SavedSession {
	sorted := make([]models.SavedSession, len(sessions))
	copy(sorted, sessions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return sorted
}

// currentStreak counts consecutive calendar days with a session, ending today.
func currentStreak(newest []models.SavedSession, now time.Time, loc *time.Location) int {
	today := dayNumber(now, loc)
	streak := 0
	for _, s := range newest {
		diff := today - dayNumber(s.CreatedAt, loc)
		if diff == streak {
			streak++
		} else if diff > streak {
			break
		}
	}
	return streak
}

func mostActiveDay(newest []models.SavedSession, loc *time.Location) string {
	counts := map[time.Weekday]int{}
	var order []time.Weekday
	for _, s := range newest {
		wd := s.CreatedAt.In(loc).Weekday()
		if counts[wd] == 0 {
			order = append(order, wd)
		}
		counts[wd]++
	}

	best := order[0]
	for _, wd := range order[1:] {
		if counts[wd] > counts[best] {
			best = wd
		}
	}
	return best.String()
}

// dayNumber is the count of calendar days since the Unix epoch in loc.
func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
