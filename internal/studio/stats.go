package studio

import "github.com/veostudio/studio-agent/internal/bundle"

type ChannelStats struct {
	ChannelID        string  `json:"channel_id"`
	Name             string  `json:"name"`
	Produced         int     `json:"produced"`
	EstimatedViews   int64   `json:"estimated_views"`
	EstimatedRevenue float64 `json:"estimated_revenue"`
}

type Stats struct {
	Produced         int            `json:"produced"`
	EstimatedViews   int64          `json:"estimated_views"`
	EstimatedRevenue float64        `json:"estimated_revenue"`
	Channels         []ChannelStats `json:"channels"`
}

// ComputeStats estimates views and revenue for produced bundles. A bundle
// counts towards a channel when its label equals the channel name; bundles
// of unknown channels, or channels without rpm and average views, add to the
// produced count only.
func ComputeStats(bundles []*bundle.Bundle, channels []Channel) Stats {
	st := Stats{Produced: len(bundles), Channels: make([]ChannelStats, len(channels))}
	byName := make(map[string]int, len(channels))
	for i, c := range channels {
		st.Channels[i] = ChannelStats{ChannelID: c.ID, Name: c.Name}
		byName[c.Name] = i
	}

	for _, b := range bundles {
		i, ok := byName[b.ChannelLabel]
		if !ok {
			continue
		}
		cs := &st.Channels[i]
		cs.Produced++

		c := channels[i]
		if c.AvgViews <= 0 || c.RPM <= 0 {
			continue
		}
		revenue := float64(c.AvgViews) / 1000 * c.RPM
		cs.EstimatedViews += c.AvgViews
		cs.EstimatedRevenue += revenue
		st.EstimatedViews += c.AvgViews
		st.EstimatedRevenue += revenue
	}
	return st
}
