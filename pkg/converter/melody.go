package converter

import "sort"

// Voice selection weights. Freshly attacked notes are scored on pitch,
// velocity, and melodic continuity with the previous melody note; the
// constant attack bonus keeps fresh attacks ahead of sustained material.
const (
	attackWindow     = 0.06 // seconds
	weightPitch      = 0.55
	weightVelocity   = 0.30
	weightContinuity = 0.15
	weightAttack     = 0.10

	continuityRange = 24.0 // semitones over which continuity decays to zero

	// noMelodyNote marks the absence of a previous melody anchor
	noMelodyNote = -1
)

// selectVoices chooses up to maxPolyphony notes to sound for one slice.
// prev is the previous melody note (noMelodyNote when there is none); the
// returned int is the new melody anchor.
func selectVoices(active []activeNote, prev int, sliceStart float64, maxPolyphony int) ([]uint8, int) {
	var attacks []activeNote
	for _, a := range active {
		if sliceStart-a.start <= attackWindow {
			attacks = append(attacks, a)
		}
	}

	if len(attacks) > 0 {
		type scored struct {
			score float64
			note  uint8
		}

		ranked := make([]scored, 0, len(attacks))
		for _, a := range attacks {
			continuity := 0.0
			if prev != noMelodyNote {
				distance := float64(int(a.note) - prev)
				if distance < 0 {
					distance = -distance
				}
				continuity = 1.0 - distance/continuityRange
				if continuity < 0 {
					continuity = 0
				}
			}

			score := weightPitch*(float64(a.note)/127.0) +
				weightVelocity*(float64(a.velocity)/127.0) +
				weightContinuity*continuity +
				weightAttack
			ranked = append(ranked, scored{score: score, note: a.note})
		}

		sort.SliceStable(ranked, func(i, j int) bool {
			if ranked[i].score != ranked[j].score {
				return ranked[i].score > ranked[j].score
			}
			return ranked[i].note > ranked[j].note
		})

		if maxPolyphony < 1 {
			maxPolyphony = 1
		}
		if len(ranked) > maxPolyphony {
			ranked = ranked[:maxPolyphony]
		}

		chosen := make([]uint8, len(ranked))
		for i, r := range ranked {
			chosen[i] = r.note
		}
		return chosen, int(chosen[0])
	}

	// No fresh attacks: sustain the melody note if it is still sounding
	if prev != noMelodyNote {
		for _, a := range active {
			if int(a.note) == prev {
				return []uint8{a.note}, prev
			}
		}
	}

	return nil, prev
}
