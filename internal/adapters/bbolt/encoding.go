// Binary encoding for score map blobs.
//
// The score-maps state is dominated by histogram bins, thousands of small
// fixed-shape records. Bins are packed into a compact binary form instead of
// JSON element objects; the surrounding map structure stays JSON (bin bytes
// ride as base64).
//
// Binary bin list format (little-endian):
//
//	binCount: uint32
//	per bin:
//	  score:   float64 bits
//	  targets: uint32
//	  decoys:  uint32
//	  pep:     float64 bits
package bbolt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/corey/pepvalid/internal/ports"
)

// binSize is the byte size of a single encoded bin.
const binSize = 24

// encodeBins packs a bin list into the binary format. Bins keep their order;
// the score maps emit them sorted ascending. A single buffer is pre-allocated.
func encodeBins(bins []ports.ScoreBin) []byte {
	buf := make([]byte, 4+len(bins)*binSize)
	binary.LittleEndian.PutUint32(buf, uint32(len(bins)))
	offset := 4
	for _, b := range bins {
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(b.Score))
		offset += 8
		binary.LittleEndian.PutUint32(buf[offset:], uint32(b.Targets))
		offset += 4
		binary.LittleEndian.PutUint32(buf[offset:], uint32(b.Decoys))
		offset += 4
		binary.LittleEndian.PutUint64(buf[offset:], math.Float64bits(b.PEP))
		offset += 8
	}
	return buf
}

// decodeBins unpacks a binary bin list. Every read is bounds-checked to avoid
// panics on corrupt data.
func decodeBins(data []byte) ([]ports.ScoreBin, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("bin list too short: %d bytes", len(data))
	}
	count := binary.LittleEndian.Uint32(data)
	if want := 4 + int(count)*binSize; len(data) < want {
		return nil, fmt.Errorf("truncated bin list: %d bytes, need %d", len(data), want)
	}

	bins := make([]ports.ScoreBin, count)
	offset := 4
	for i := uint32(0); i < count; i++ {
		bins[i].Score = math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
		bins[i].Targets = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		bins[i].Decoys = int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		bins[i].PEP = math.Float64frombits(binary.LittleEndian.Uint64(data[offset:]))
		offset += 8
	}
	return bins, nil
}

// targetDecoyBlob is the stored form of one serialized target/decoy map.
type targetDecoyBlob struct {
	Bins      []byte            `json:"bins,omitempty"`
	Estimated bool              `json:"estimated"`
	Results   *ports.FDRResults `json:"results,omitempty"`
}

func toBlob(state *ports.TargetDecoyState) *targetDecoyBlob {
	if state == nil {
		return nil
	}
	return &targetDecoyBlob{
		Bins:      encodeBins(state.Bins),
		Estimated: state.Estimated,
		Results:   state.Results,
	}
}

func fromBlob(blob *targetDecoyBlob) (*ports.TargetDecoyState, error) {
	if blob == nil {
		return nil, nil
	}
	state := &ports.TargetDecoyState{Estimated: blob.Estimated, Results: blob.Results}
	if blob.Bins != nil {
		bins, err := decodeBins(blob.Bins)
		if err != nil {
			return nil, err
		}
		state.Bins = bins
	}
	return state, nil
}

// scoreMapsBlob is the stored form of ports.ScoreMapsState.
type scoreMapsBlob struct {
	Input           map[ports.Advocate]*targetDecoyBlob `json:"input,omitempty"`
	Psm             map[string]*targetDecoyBlob         `json:"psm,omitempty"`
	PsmGrouping     map[string]string                   `json:"psm_grouping,omitempty"`
	Peptide         map[string]*targetDecoyBlob         `json:"peptide,omitempty"`
	PeptideGrouping map[string]string                   `json:"peptide_grouping,omitempty"`
	Protein         *targetDecoyBlob                    `json:"protein,omitempty"`
}

func encodeScoreMaps(state *ports.ScoreMapsState) *scoreMapsBlob {
	blob := &scoreMapsBlob{
		PsmGrouping:     state.PsmGrouping,
		PeptideGrouping: state.PeptideGrouping,
		Protein:         toBlob(state.Protein),
	}
	if state.Input != nil {
		blob.Input = make(map[ports.Advocate]*targetDecoyBlob, len(state.Input))
		for adv, td := range state.Input {
			blob.Input[adv] = toBlob(td)
		}
	}
	if state.Psm != nil {
		blob.Psm = make(map[string]*targetDecoyBlob, len(state.Psm))
		for key, td := range state.Psm {
			blob.Psm[key] = toBlob(td)
		}
	}
	if state.Peptide != nil {
		blob.Peptide = make(map[string]*targetDecoyBlob, len(state.Peptide))
		for key, td := range state.Peptide {
			blob.Peptide[key] = toBlob(td)
		}
	}
	return blob
}

func decodeScoreMaps(blob *scoreMapsBlob) (*ports.ScoreMapsState, error) {
	state := &ports.ScoreMapsState{
		PsmGrouping:     blob.PsmGrouping,
		PeptideGrouping: blob.PeptideGrouping,
	}
	var err error
	if state.Protein, err = fromBlob(blob.Protein); err != nil {
		return nil, fmt.Errorf("protein map: %w", err)
	}
	if blob.Input != nil {
		state.Input = make(map[ports.Advocate]*ports.TargetDecoyState, len(blob.Input))
		for adv, td := range blob.Input {
			if state.Input[adv], err = fromBlob(td); err != nil {
				return nil, fmt.Errorf("input map %s: %w", adv, err)
			}
		}
	}
	if blob.Psm != nil {
		state.Psm = make(map[string]*ports.TargetDecoyState, len(blob.Psm))
		for key, td := range blob.Psm {
			if state.Psm[key], err = fromBlob(td); err != nil {
				return nil, fmt.Errorf("psm map %s: %w", key, err)
			}
		}
	}
	if blob.Peptide != nil {
		state.Peptide = make(map[string]*ports.TargetDecoyState, len(blob.Peptide))
		for key, td := range blob.Peptide {
			if state.Peptide[key], err = fromBlob(td); err != nil {
				return nil, fmt.Errorf("peptide map %s: %w", key, err)
			}
		}
	}
	return state, nil
}
