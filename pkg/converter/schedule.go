package converter

// Schedule flattens a song onto a limited-polyphony buzzer tone stream.
// Consecutive identical tones are left unmerged; printers merge during
// encoding where their command format allows it.
func Schedule(song *Song, opts Options) []Tone {
	if song == nil || len(song.Notes) == 0 {
		return nil
	}

	notes := song.Notes
	if opts.TempoScale > 0 && opts.TempoScale != 1.0 {
		scaled := make([]NoteEvent, len(notes))
		for i, n := range notes {
			scaled[i] = n
			scaled[i].Start = n.Start / opts.TempoScale
			scaled[i].Duration = n.Duration / opts.TempoScale
		}
		notes = scaled
	}

	minDuration := float64(opts.MinNoteMs) / 1000.0
	slices := buildSlices(notes, minDuration)

	tones := make([]Tone, 0, len(slices))
	prev := noMelodyNote

	for _, sl := range slices {
		var voices []uint8
		voices, prev = selectVoices(sl.active, prev, sl.start, opts.MaxPolyphony)

		durationMs := opts.QuantizeMs
		if durationMs <= 0 {
			durationMs = int(sl.duration * 1000)
			if durationMs < opts.MinNoteMs {
				durationMs = opts.MinNoteMs
			}
		}

		tones = append(tones, Tone{Notes: voices, DurationMs: durationMs})
	}

	return tones
}

// TonesToSong reconstructs a note timeline from a buzzer tone stream.
// Tones are laid out back to back; rests advance time without notes.
func TonesToSong(tones []Tone) *Song {
	song := &Song{Name: "Buzzer Song", Tempo: 120.0}

	var cursor float64
	for _, t := range tones {
		duration := float64(t.DurationMs) / 1000.0
		for _, n := range t.Notes {
			song.Notes = append(song.Notes, NoteEvent{
				Start:    cursor,
				Note:     n,
				Velocity: 100,
				Duration: duration,
			})
		}
		cursor += duration
	}

	return song
}
