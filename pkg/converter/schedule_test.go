package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleSimpleMelody(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.2},
			{Start: 0.2, Note: 62, Velocity: 100, Duration: 0.2},
			{Start: 0.4, Note: 64, Velocity: 100, Duration: 0.2},
		},
	}

	tones := Schedule(song, DefaultOptions())

	require.Len(t, tones, 3)
	for i, want := range []uint8{60, 62, 64} {
		require.Len(t, tones[i].Notes, 1)
		assert.Equal(t, want, tones[i].Notes[0])
		assert.Equal(t, 200, tones[i].DurationMs)
	}
}

func TestScheduleQuantize(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.123},
			{Start: 0.123, Note: 62, Velocity: 100, Duration: 0.456},
		},
	}

	opts := DefaultOptions()
	opts.QuantizeMs = 160

	tones := Schedule(song, opts)

	require.Len(t, tones, 2)
	for _, tone := range tones {
		assert.Equal(t, 160, tone.DurationMs)
	}
}

func TestScheduleMinDurationClamp(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.06},
		},
	}

	opts := DefaultOptions()
	opts.MinNoteMs = 75

	tones := Schedule(song, opts)

	// A 60ms slice falls under the 75ms floor and is culled entirely
	assert.Empty(t, tones)
}

func TestScheduleClampsShortTones(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.055},
		},
	}

	tones := Schedule(song, DefaultOptions())

	require.Len(t, tones, 1)
	// 55ms slice passes the 50ms floor; duration is kept, not clamped up
	assert.Equal(t, 55, tones[0].DurationMs)
}

func TestScheduleTempoScale(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.4},
			{Start: 0.4, Note: 62, Velocity: 100, Duration: 0.4},
		},
	}

	opts := DefaultOptions()
	opts.TempoScale = 2.0

	tones := Schedule(song, opts)

	require.Len(t, tones, 2)
	assert.Equal(t, 200, tones[0].DurationMs)
	assert.Equal(t, 200, tones[1].DurationMs)
}

func TestSchedulePolyphonyReduction(t *testing.T) {
	// A three-note chord reduced to the two strongest voices
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.5},
			{Start: 0, Note: 64, Velocity: 100, Duration: 0.5},
			{Start: 0, Note: 67, Velocity: 100, Duration: 0.5},
		},
	}

	tones := Schedule(song, DefaultOptions())

	require.Len(t, tones, 1)
	assert.Equal(t, []uint8{67, 64}, tones[0].Notes)
}

func TestScheduleRestBetweenNotes(t *testing.T) {
	song := &Song{
		Notes: []NoteEvent{
			{Start: 0, Note: 60, Velocity: 100, Duration: 0.2},
			{Start: 0.5, Note: 62, Velocity: 100, Duration: 0.2},
		},
	}

	tones := Schedule(song, DefaultOptions())

	require.Len(t, tones, 3)
	assert.NotEmpty(t, tones[0].Notes)
	assert.Empty(t, tones[1].Notes, "gap between notes should be a rest")
	assert.Equal(t, 300, tones[1].DurationMs)
	assert.NotEmpty(t, tones[2].Notes)
}

func TestScheduleEmptySong(t *testing.T) {
	assert.Nil(t, Schedule(&Song{}, DefaultOptions()))
	assert.Nil(t, Schedule(nil, DefaultOptions()))
}

func TestTonesToSong(t *testing.T) {
	tones := []Tone{
		{Notes: []uint8{60}, DurationMs: 200},
		{DurationMs: 100}, // rest
		{Notes: []uint8{64, 67}, DurationMs: 300},
	}

	song := TonesToSong(tones)

	require.Len(t, song.Notes, 3)

	assert.Equal(t, uint8(60), song.Notes[0].Note)
	assert.Equal(t, 0.0, song.Notes[0].Start)
	assert.InDelta(t, 0.2, song.Notes[0].Duration, 1e-9)

	// The rest advances time without adding notes
	assert.InDelta(t, 0.3, song.Notes[1].Start, 1e-9)
	assert.Equal(t, uint8(64), song.Notes[1].Note)
	assert.InDelta(t, 0.3, song.Notes[2].Start, 1e-9)
	assert.Equal(t, uint8(67), song.Notes[2].Note)
}
