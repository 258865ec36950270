package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSlicesSingleNote(t *testing.T) {
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 1.0},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 1)
	assert.Equal(t, 0.0, slices[0].start)
	assert.Equal(t, 1.0, slices[0].duration)
	require.Len(t, slices[0].active, 1)
	assert.Equal(t, uint8(60), slices[0].active[0].note)
}

func TestBuildSlicesOverlap(t *testing.T) {
	// Note 60 sounds 0..1, note 64 sounds 0.5..1.5: three segments
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 1.0},
		{Start: 0.5, Note: 64, Velocity: 100, Duration: 1.0},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 3)

	assert.Equal(t, 0.0, slices[0].start)
	assert.Equal(t, 0.5, slices[0].duration)
	require.Len(t, slices[0].active, 1)

	assert.Equal(t, 0.5, slices[1].start)
	assert.Equal(t, 0.5, slices[1].duration)
	require.Len(t, slices[1].active, 2)

	assert.Equal(t, 1.0, slices[2].start)
	assert.Equal(t, 0.5, slices[2].duration)
	require.Len(t, slices[2].active, 1)
	assert.Equal(t, uint8(64), slices[2].active[0].note)
}

func TestBuildSlicesChord(t *testing.T) {
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 1.0},
		{Start: 0, Note: 64, Velocity: 90, Duration: 1.0},
		{Start: 0, Note: 67, Velocity: 80, Duration: 1.0},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 1)
	assert.Len(t, slices[0].active, 3)
}

func TestBuildSlicesBackToBack(t *testing.T) {
	// The second note starts exactly when the first ends. Ends are
	// processed before starts, so no overlap segment appears.
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 0.5},
		{Start: 0.5, Note: 62, Velocity: 100, Duration: 0.5},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 2)
	require.Len(t, slices[0].active, 1)
	assert.Equal(t, uint8(60), slices[0].active[0].note)
	require.Len(t, slices[1].active, 1)
	assert.Equal(t, uint8(62), slices[1].active[0].note)
}

func TestBuildSlicesDropsShortSegments(t *testing.T) {
	// A 10ms sliver between two long notes falls under the 50ms floor
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 0.5},
		{Start: 0.49, Note: 64, Velocity: 100, Duration: 0.5},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 2)
	// The dropped sliver does not shift later slices
	assert.Equal(t, 0.0, slices[0].start)
	assert.InDelta(t, 0.49, slices[0].duration, 1e-9)
	assert.InDelta(t, 0.5, slices[1].start, 1e-9)
}

func TestBuildSlicesEmpty(t *testing.T) {
	assert.Nil(t, buildSlices(nil, 0.05))
	assert.Nil(t, buildSlices([]NoteEvent{}, 0.05))
}

func TestBuildSlicesKeepsAttackTime(t *testing.T) {
	// The attack time of a sustained note must survive into later slices
	notes := []NoteEvent{
		{Start: 0, Note: 60, Velocity: 100, Duration: 2.0},
		{Start: 1.0, Note: 64, Velocity: 100, Duration: 0.5},
	}

	slices := buildSlices(notes, 0.05)

	require.Len(t, slices, 3)
	// Middle slice: note 60 attacked at 0, note 64 attacked at 1.0
	for _, a := range slices[1].active {
		switch a.note {
		case 60:
			assert.Equal(t, 0.0, a.start)
		case 64:
			assert.Equal(t, 1.0, a.start)
		default:
			t.Fatalf("unexpected note %d", a.note)
		}
	}
}
