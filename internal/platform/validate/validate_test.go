// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package validate_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/platform/validate"
)

/*
TestValidator_Required verifies empty-string detection including whitespace.
*/
func TestValidator_Required(t *testing.T) {
	v := &validate.Validator{}
	v.Required("name", "kyoshiro")
	assert.NoError(t, v.Err())

	v = &validate.Validator{}
	v.Required("name", "   ")
	assert.Error(t, v.Err())
}

/*
TestValidator_SourceName verifies the safe character set for scraper
capability identifiers.
*/
func TestValidator_SourceName(t *testing.T) {
	valid := []string{"kyoshiro", "source-2", "Source_B", "a"}
	for _, name := range valid {
		v := &validate.Validator{}
		assert.NoError(t, v.SourceName("source", name).Err(), name)
	}

	invalid := []string{"", "bad source", "a/b", "../../etc", "név"}
	for _, name := range invalid {
		v := &validate.Validator{}
		assert.Error(t, v.SourceName("source", name).Err(), name)
	}
}

/*
TestValidator_MaxLen verifies the upper length bound used for source names.
*/
func TestValidator_MaxLen(t *testing.T) {
	v := &validate.Validator{}
	v.MaxLen("source", strings.Repeat("a", 500), 500)
	assert.NoError(t, v.Err())

	v = &validate.Validator{}
	v.MaxLen("source", strings.Repeat("a", 501), 500)
	assert.Error(t, v.Err())
}

/*
TestValidator_CollectsAllErrors verifies that multiple failures surface as a
single VALIDATION_ERROR with per-field details.
*/
func TestValidator_CollectsAllErrors(t *testing.T) {
	v := &validate.Validator{}
	v.Required("series_id", "")
	v.SourceName("source", "not ok")

	err := v.Err()
	assert.Error(t, err)

	ae := apperr.As(err)
	assert.NotNil(t, ae)
	assert.Equal(t, "VALIDATION_ERROR", ae.Code)
	assert.Len(t, ae.Details, 2)
}
