package converter

import "sort"

// activeNote is a note sounding during a time slice
type activeNote struct {
	note     uint8
	velocity uint8
	start    float64 // attack time in seconds
}

// timeSlice is a stretch of the timeline over which the set of sounding
// notes does not change
type timeSlice struct {
	start    float64
	duration float64
	active   []activeNote
}

// buildSlices cuts the note timeline at every note start and end boundary.
// Slices shorter than minDuration are dropped; their time still passes, so
// the absolute position of later slices is unaffected.
func buildSlices(notes []NoteEvent, minDuration float64) []timeSlice {
	if len(notes) == 0 {
		return nil
	}

	type boundary struct {
		time     float64
		end      bool
		note     uint8
		velocity uint8
	}

	timeline := make([]boundary, 0, len(notes)*2)
	for _, n := range notes {
		timeline = append(timeline,
			boundary{time: n.Start, note: n.Note, velocity: n.Velocity},
			boundary{time: n.Start + n.Duration, end: true, note: n.Note, velocity: n.Velocity},
		)
	}

	// Ends before starts at the same instant, so back-to-back notes don't
	// produce a zero-length overlap slice
	sort.SliceStable(timeline, func(i, j int) bool {
		if timeline[i].time != timeline[j].time {
			return timeline[i].time < timeline[j].time
		}
		return timeline[i].end && !timeline[j].end
	})

	var slices []timeSlice
	var active []activeNote
	var lastTime float64

	for _, b := range timeline {
		if b.time > lastTime {
			duration := b.time - lastTime
			if duration >= minDuration {
				snapshot := make([]activeNote, len(active))
				copy(snapshot, active)
				slices = append(slices, timeSlice{
					start:    lastTime,
					duration: duration,
					active:   snapshot,
				})
			}
		}

		if b.end {
			for i, a := range active {
				if a.note == b.note {
					active = append(active[:i], active[i+1:]...)
					break
				}
			}
		} else {
			// Re-attack of a sounding note replaces its entry
			replaced := false
			for i, a := range active {
				if a.note == b.note {
					active[i] = activeNote{note: b.note, velocity: b.velocity, start: b.time}
					replaced = true
					break
				}
			}
			if !replaced {
				active = append(active, activeNote{note: b.note, velocity: b.velocity, start: b.time})
			}
		}

		lastTime = b.time
	}

	return slices
}
