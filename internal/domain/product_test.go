package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestMatchType_JSON(t *testing.T) {
	tests := []struct {
		matchType MatchType
		wire      string
	}{
		{MatchNone, `"none"`},
		{MatchFuzzy, `"fuzzy"`},
		{MatchPartial, `"partial"`},
		{MatchExact, `"exact"`},
	}

	for _, tt := range tests {
		t.Run(tt.matchType.String(), func(t *testing.T) {
			data, err := json.Marshal(tt.matchType)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.wire {
				t.Errorf("Marshal() = %s, want %s", data, tt.wire)
			}

			var got MatchType
			if err := json.Unmarshal([]byte(tt.wire), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.matchType {
				t.Errorf("Unmarshal() = %v, want %v", got, tt.matchType)
			}
		})
	}
}

func TestParseMatchType_Unknown(t *testing.T) {
	_, err := ParseMatchType("maybe")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("ParseMatchType() error = %v, want ErrInvalidRequest", err)
	}
}

func TestMatchType_OrderedByStrength(t *testing.T) {
	if !(MatchNone < MatchFuzzy && MatchFuzzy < MatchPartial && MatchPartial < MatchExact) {
		t.Error("match types should be ordered none < fuzzy < partial < exact")
	}
}

func TestRecognitionError(t *testing.T) {
	cause := errors.New("bad pixels")
	err := error(&RecognitionError{Op: "decode", Err: cause})

	if !errors.Is(err, ErrRecognition) {
		t.Error("RecognitionError should match ErrRecognition")
	}
	if !errors.Is(err, cause) {
		t.Error("RecognitionError should unwrap to its cause")
	}
	if err.Error() != "recognition: decode: bad pixels" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCorrectionStoreError(t *testing.T) {
	cause := errors.New("disk full")
	err := error(&CorrectionStoreError{Key: "correction:ail", Err: cause})

	if !errors.Is(err, ErrCorrectionStore) {
		t.Error("CorrectionStoreError should match ErrCorrectionStore")
	}
	if !errors.Is(err, cause) {
		t.Error("CorrectionStoreError should unwrap to its cause")
	}
	if errors.Is(err, ErrRecognition) {
		t.Error("CorrectionStoreError should not match ErrRecognition")
	}
}
