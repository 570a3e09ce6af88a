package gunshot

import (
	"math"
)

// EventDetector finds impulsive, high-energy segments in an audio buffer.
// It is stateless across calls; every Detect starts from a fresh baseline.
type EventDetector struct {
	cfg Config
}

func NewEventDetector(cfg Config) *EventDetector {
	return &EventDetector{cfg: cfg}
}

// Detect returns candidate events ordered by start time. An empty buffer is
// an error; a buffer with no events above the threshold returns an empty
// slice and no error.
func (d *EventDetector) Detect(samples []float64, sampleRate int) ([]CandidateEvent, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyBuffer
	}

	frameLen := int(d.cfg.FrameSeconds * float64(sampleRate))
	if frameLen < 1 {
		frameLen = 1
	}
	hop := int(float64(frameLen) * (1 - d.cfg.FrameOverlap))
	if hop < 1 {
		hop = 1
	}

	energies := frameEnergies(samples, frameLen, hop)
	if len(energies) == 0 {
		return nil, nil
	}

	// Normalize by the global peak so the floor threshold is scale
	// invariant. A near-zero peak means the buffer is silence.
	peak := 0.0
	for _, e := range energies {
		if e > peak {
			peak = e
		}
	}
	if peak < 1e-8 {
		return nil, nil
	}
	for i := range energies {
		energies[i] /= peak
	}

	var events []CandidateEvent
	inEvent := false
	var startFrame, peakFrame int
	var peakEnergy float64

	// The noise baseline only accumulates below-threshold frames, so a
	// loud event does not inflate the threshold for the frames after it.
	baseline := make([]float64, 0, d.cfg.BaselineFrames)

	for i, e := range energies {
		threshold := d.threshold(baseline)
		if e >= threshold {
			if !inEvent {
				inEvent = true
				startFrame = i
				peakFrame = i
				peakEnergy = e
			} else if e > peakEnergy {
				peakFrame = i
				peakEnergy = e
			}
			continue
		}
		if inEvent {
			events = append(events, d.makeEvent(samples, sampleRate, startFrame, i, peakFrame, frameLen, hop, peakEnergy))
			inEvent = false
		}
		if len(baseline) == d.cfg.BaselineFrames {
			baseline = baseline[1:]
		}
		baseline = append(baseline, e)
	}
	if inEvent {
		events = append(events, d.makeEvent(samples, sampleRate, startFrame, len(energies), peakFrame, frameLen, hop, peakEnergy))
	}

	return d.coalesce(events), nil
}

// threshold computes the detection threshold from the trailing noise
// baseline, clamped below by the configured floor.
func (d *EventDetector) threshold(baseline []float64) float64 {
	if len(baseline) == 0 {
		return d.cfg.EnergyFloor
	}

	var mean float64
	for _, e := range baseline {
		mean += e
	}
	mean /= float64(len(baseline))

	var variance float64
	for _, e := range baseline {
		dv := e - mean
		variance += dv * dv
	}
	variance /= float64(len(baseline))

	adaptive := mean + d.cfg.ThresholdK*math.Sqrt(variance)
	if adaptive < d.cfg.EnergyFloor {
		return d.cfg.EnergyFloor
	}
	return adaptive
}

// makeEvent reports the flagged frames' own time span. Context padding for
// feature extraction is the extractor's concern, not the event's.
func (d *EventDetector) makeEvent(samples []float64, sampleRate, startFrame, endFrame, peakFrame, frameLen, hop int, peakEnergy float64) CandidateEvent {
	frameDur := float64(hop) / float64(sampleRate)
	start := float64(startFrame) * frameDur
	end := float64(endFrame)*frameDur + d.cfg.FrameSeconds
	total := float64(len(samples)) / float64(sampleRate)
	if end > total {
		end = total
	}

	// Peak amplitude over the peak frame's raw samples.
	lo := peakFrame * hop
	hi := lo + frameLen
	if hi > len(samples) {
		hi = len(samples)
	}
	var peakAmp float64
	for _, s := range samples[lo:hi] {
		if a := math.Abs(s); a > peakAmp {
			peakAmp = a
		}
	}

	return CandidateEvent{Start: start, End: end, PeakAmplitude: peakAmp, PeakConfidence: peakEnergy}
}

// coalesce merges events whose gap is below MinEventGap. Input and output
// are ordered by start time.
func (d *EventDetector) coalesce(events []CandidateEvent) []CandidateEvent {
	if len(events) == 0 {
		return nil
	}
	merged := []CandidateEvent{events[0]}
	for _, ev := range events[1:] {
		last := &merged[len(merged)-1]
		if ev.Start-last.End < d.cfg.MinEventGap {
			if ev.End > last.End {
				last.End = ev.End
			}
			if ev.PeakAmplitude > last.PeakAmplitude {
				last.PeakAmplitude = ev.PeakAmplitude
			}
			if ev.PeakConfidence > last.PeakConfidence {
				last.PeakConfidence = ev.PeakConfidence
			}
			continue
		}
		merged = append(merged, ev)
	}
	return merged
}

func frameEnergies(samples []float64, frameLen, hop int) []float64 {
	if len(samples) < frameLen {
		frameLen = len(samples)
	}
	n := (len(samples)-frameLen)/hop + 1
	energies := make([]float64, 0, n)
	for i := 0; i+frameLen <= len(samples); i += hop {
		var e float64
		for _, s := range samples[i : i+frameLen] {
			e += s * s
		}
		energies = append(energies, e)
	}
	return energies
}
