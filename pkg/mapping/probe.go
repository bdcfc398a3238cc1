package mapping

import (
	"context"

	"github.com/matzehuels/condapip/pkg/integrations/anaconda"
)

// ChannelProbe is an identity mapping: a PyPI name maps to the conda
// package of the same normalized name if the channel carries one.
// It is meant to run after the curated sources.
type ChannelProbe struct {
	client  *anaconda.Client
	channel string
}

// NewChannelProbe returns a probe against channel (e.g. "conda-forge").
func NewChannelProbe(client *anaconda.Client, channel string) *ChannelProbe {
	if channel == "" {
		channel = "conda-forge"
	}
	return &ChannelProbe{client: client, channel: channel}
}

// Name implements Source.
func (p *ChannelProbe) Name() string { return "anaconda" }

// Channel returns the probed channel.
func (p *ChannelProbe) Channel() string { return p.channel }

// Lookup implements Source.
func (p *ChannelProbe) Lookup(ctx context.Context, name string) (Mapping, bool, error) {
	ok, err := p.client.Exists(ctx, p.channel, name)
	if err != nil || !ok {
		return Mapping{}, false, err
	}
	return Mapping{PyPIName: name, CondaName: name, Source: "anaconda"}, true, nil
}
