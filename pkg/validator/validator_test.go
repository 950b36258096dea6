package validator

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type runOptions struct {
	TTL      time.Duration `flag:"ttl" validate:"gte=1s"`
	ClientID *int64        `flag:"client" validate:"omitempty,gt=0"`
	Address  string        `mapstructure:"address" validate:"required,hostname_port"`
}

func TestValidateStructSuccess(t *testing.T) {
	id := int64(4)
	require.NoError(t, ValidateStruct(runOptions{TTL: time.Minute, ClientID: &id, Address: "127.0.0.1:6379"}))
	require.NoError(t, ValidateStruct(runOptions{TTL: time.Second, Address: "redis:6379"}))
}

func TestValidateStructFailuresUseOptionNames(t *testing.T) {
	id := int64(-1)
	err := ValidateStruct(runOptions{TTL: 0, ClientID: &id, Address: "nope"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, map[string]string{"ttl": "gte", "client": "gt", "address": "hostname_port"}, fields)
	require.Contains(t, err.Error(), "ttl failed on gte=1s")
}

func TestRegisterValidation(t *testing.T) {
	err := RegisterValidation("crm_status", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "prospect", "active", "inactive":
			return true
		}
		return false
	})
	require.NoError(t, err)

	type custom struct {
		Status string `validate:"crm_status"`
	}

	require.NoError(t, ValidateStruct(custom{Status: "active"}))
	require.Error(t, ValidateStruct(custom{Status: "other"}))
}
