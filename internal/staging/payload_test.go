package staging

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wisefido-rfid/internal/ledger"
	"wisefido-rfid/internal/policy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(selected ...bool) []ledger.TagRecord {
	tids := []string{"E2000017221101441700B6B6", "E2001234ABCD00001700FFFF", "E20000172211014417000001"}
	var out []ledger.TagRecord
	for i, s := range selected {
		out = append(out, ledger.TagRecord{
			TID:           tids[i],
			SequenceID:    i + 1,
			SightingCount: 1,
			LastSeenAt:    time.Now(),
			Selected:      s,
		})
	}
	return out
}

func reasonOf(t *testing.T, err error) Reason {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	return ve.Reason
}

func TestBuildPayload_NothingSelected_AnyMode(t *testing.T) {
	lon, lat := 102.7, 25.0
	full := policy.AuxiliaryFields{
		Classification: &policy.Category{ID: "3", MaterialName: "PE", DiameterSize: 110},
		Longitude:      &lon,
		Latitude:       &lat,
		Address:        "昆明",
	}
	for _, m := range policy.Modes {
		p, err := BuildPayload(m, records(false, false), full)
		assert.Equal(t, NothingSelected, reasonOf(t, err), m)
		assert.Empty(t, p.Items)

		_, err = BuildPayload(m, nil, full)
		assert.Equal(t, NothingSelected, reasonOf(t, err), m)
	}
}

func TestBuildPayload_RegistrationRequiresClassification(t *testing.T) {
	_, err := BuildPayload(policy.ModeRegistration, records(true), policy.AuxiliaryFields{})
	assert.Equal(t, MissingClassification, reasonOf(t, err))
	assert.True(t, errors.Is(err, &ValidationError{Reason: MissingClassification}))

	aux := policy.AuxiliaryFields{Classification: &policy.Category{ID: "3", MaterialName: "PE", DiameterSize: 110}}
	p, err := BuildPayload(policy.ModeRegistration, records(true, false, true), aux)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "E2000017221101441700B6B6", p.Items[0].ChipID)
	assert.Equal(t, "E20000172211014417000001", p.Items[1].ChipID)
	assert.Equal(t, "3", p.Items[1].PipelineCategoryID)
	require.NotNil(t, p.Items[1].DiameterSize)
	assert.Equal(t, 110.0, *p.Items[1].DiameterSize)
	assert.Nil(t, p.Items[1].Longitude)
}

func TestBuildPayload_InstallationRequiresBothCoordinates(t *testing.T) {
	lon := 102.7
	_, err := BuildPayload(policy.ModeInstallation, records(true), policy.AuxiliaryFields{Longitude: &lon})
	assert.Equal(t, MissingLocation, reasonOf(t, err))

	lat := 25.04
	p, err := BuildPayload(policy.ModeInstallation, records(true), policy.AuxiliaryFields{Longitude: &lon, Latitude: &lat})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, 25.04, *p.Items[0].Latitude)
}

func TestBuildPayload_OutboundRequiresAddress(t *testing.T) {
	_, err := BuildPayload(policy.ModeOutbound, records(true), policy.AuxiliaryFields{})
	assert.Equal(t, MissingAddress, reasonOf(t, err))

	p, err := BuildPayload(policy.ModeOutbound, records(true, true), policy.AuxiliaryFields{Address: "五华区"})
	require.NoError(t, err)
	assert.Len(t, p.Items, 2)
	assert.Equal(t, "五华区", p.Items[1].Address)
}

func TestBuildPayload_InboundOnlyChipIDs(t *testing.T) {
	p, err := BuildPayload(policy.ModeInbound, records(true), policy.AuxiliaryFields{})
	require.NoError(t, err)

	raw, err := json.Marshal(p.Items)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"chipId":"E2000017221101441700B6B6"}]`, string(raw))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Reason: MissingAddress}
	assert.Equal(t, "请先填写项目地址", err.Message())
	assert.Contains(t, err.Error(), "missing_address")
}
