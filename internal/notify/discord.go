package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo.Session methods we use, enabling
// test mocks.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts events to one Discord channel. The REST path is enough for
// outbound-only messages; no gateway connection is opened.
type Discord struct {
	sess      discordSession
	channelID string
}

// DiscordOpts holds parameters for creating a Discord notifier.
type DiscordOpts struct {
	Token     string
	ChannelID string
	// For testing: inject a mock session instead of the real API.
	Session discordSession
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*Discord, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("notify: discord token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}

	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = s
	}
	return &Discord{sess: sess, channelID: opts.ChannelID}, nil
}

func (d *Discord) Notify(ctx context.Context, ev Event) error {
	_, err := d.sess.ChannelMessageSend(d.channelID, Format(ev), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
