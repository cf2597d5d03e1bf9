package notifier

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"gamehall/events"
	"gamehall/models"

	"github.com/bwmarrin/discordgo"
)

// Config holds announcer configuration
type Config struct {
	Token     string
	ChannelID string
}

// Discord announces room lifecycle milestones to a channel. It is a plain
// event consumer; game state never depends on it.
type Discord struct {
	config  Config
	session *discordgo.Session
}

// NewDiscord opens a Discord session and subscribes the announcer to the
// event bus
func NewDiscord(config Config, bus *events.Bus) (*Discord, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("error opening connection: %w", err)
	}

	announcer := &Discord{
		config:  config,
		session: dg,
	}

	bus.Subscribe(events.EventTypeRoomStateChanged, announcer.handleRoomStateChanged)
	bus.Subscribe(events.EventTypeRoundFinished, announcer.handleRoundFinished)

	log.WithField("channelID", config.ChannelID).Info("Discord announcer connected")
	return announcer, nil
}

func (d *Discord) Close() error {
	return d.session.Close()
}

func (d *Discord) handleRoomStateChanged(ctx context.Context, event events.Event) {
	changed, ok := event.(events.RoomStateChangedEvent)
	if !ok {
		return
	}

	var description string
	switch changed.NewState {
	case models.RoomStateLocked:
		description = fmt.Sprintf("🔒 Room `%s` locked for round %d, resolving...", changed.RoomPublicID, changed.Round)
	case models.RoomStateOpen:
		description = fmt.Sprintf("🪑 Room `%s` is open for round %d, take a seat!", changed.RoomPublicID, changed.Round)
	default:
		return
	}

	d.send(&discordgo.MessageEmbed{
		Description: description,
		Color:       ColorPrimary,
	})
}

func (d *Discord) handleRoundFinished(ctx context.Context, event events.Event) {
	finished, ok := event.(events.RoundFinishedEvent)
	if !ok {
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎉 **Round Finished** 🎉",
		Description: fmt.Sprintf("Room `%s`, round %d", finished.RoomPublicID, finished.Round),
		Color:       ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "Result",
				Value: fmt.Sprintf("• Winner seat: **%d**\n• Prize: **%s bits**",
					finished.WinnerSeat,
					FormatBalance(finished.Prize),
				),
				Inline: false,
			},
			{
				Name: "Provably Fair",
				Value: fmt.Sprintf("• Seed hash: `%s`\n• Revealed seed: `%s`",
					finished.SeedHash,
					finished.Seed,
				),
				Inline: false,
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Resolved",
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}
	d.send(embed)
}

func (d *Discord) send(embed *discordgo.MessageEmbed) {
	if _, err := d.session.ChannelMessageSendEmbed(d.config.ChannelID, embed); err != nil {
		log.WithError(err).Error("Failed to send Discord announcement")
	}
}
