package bot

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestParseSnowflake(t *testing.T) {
	type args struct {
		id string
	}
	tests := []struct {
		name    string
		args    args
		want    time.Time
		wantErr bool
	}{
		{
			name:    "valid test",
			args:    args{"163454407999094786"},
			want:    time.UnixMilli(1459040967703),
			wantErr: false,
		},
		{
			name:    "invalid test",
			args:    args{"asdf"},
			want:    time.Now(),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSnowflake(tt.args.id)
			if tt.wantErr {
				assert.Error(t, err)
				assert.WithinDuration(t, tt.want, got, 5*time.Second)
				return
			}
			assert.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
		})
	}
}

func TestTrimChannelString(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{
			name: "valid test",
			args: "<#1234>",
			want: "1234",
		},
		{
			name: "valid test 2",
			args: "1234",
			want: "1234",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimChannelString(tt.args))
		})
	}
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		name   string
		args   string
		want   string
		wantOk bool
	}{
		{"raw id", "1234", "1234", true},
		{"user mention", "<@1234>", "1234", true},
		{"nickname mention", "<@!1234>", "1234", true},
		{"role mention", "<@&1234>", "1234", true},
		{"padded", "  <@1234> ", "1234", true},
		{"channel mention", "<#1234>", "", false},
		{"name", "jeff", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMention(tt.args)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToMessage(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := &discordgo.Message{
		ID:        "163454407999094786",
		GuildID:   "1",
		ChannelID: "2",
		Content:   "hello <@3>",
		Author:    &discordgo.User{ID: "4"},
		Mentions:  []*discordgo.User{{ID: "3"}, nil},
		Timestamp: ts,
	}

	got := toMessage(m)
	assert.Equal(t, "4", got.AuthorID)
	assert.Equal(t, []string{"3"}, got.Mentions)
	assert.Equal(t, ts, got.CreatedAt)

	m.Timestamp = time.Time{}
	m.Author = nil
	got = toMessage(m)
	assert.Empty(t, got.AuthorID)
	assert.True(t, time.UnixMilli(1459040967703).Equal(got.CreatedAt))
}
