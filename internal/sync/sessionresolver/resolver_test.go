package sessionresolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantID   string
		wantOK   bool
	}{
		{
			name:     "path form",
			location: "/chat/conv_a1b2c3d4e5f6g7h8",
			wantID:   "conv_a1b2c3d4e5f6g7h8",
			wantOK:   true,
		},
		{
			name:     "path form with trailing slash",
			location: "/chat/conv_a1b2c3d4e5f6g7h8/",
			wantID:   "conv_a1b2c3d4e5f6g7h8",
			wantOK:   true,
		},
		{
			name:     "query form",
			location: "/workspace?conversation=conv_a1b2c3d4e5f6g7h8",
			wantID:   "conv_a1b2c3d4e5f6g7h8",
			wantOK:   true,
		},
		{
			name:     "new placeholder in path reads as absent",
			location: "/chat/new",
			wantOK:   false,
		},
		{
			name:     "new placeholder in query reads as absent",
			location: "/workspace?conversation=new",
			wantOK:   false,
		},
		{
			name:     "path form wins over query form",
			location: "/chat/conv_path1234?conversation=conv_query5678",
			wantID:   "conv_path1234",
			wantOK:   true,
		},
		{
			name:     "no conversation segment",
			location: "/settings/profile",
			wantOK:   false,
		},
		{
			name:     "chat root without id",
			location: "/chat",
			wantOK:   false,
		},
		{
			name:     "empty location",
			location: "",
			wantOK:   false,
		},
		{
			name:     "nested chat path",
			location: "/app/chat/conv_nested12345",
			wantID:   "conv_nested12345",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := Resolve(tt.location)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	location := "/chat/conv_a1b2c3d4e5f6g7h8"
	first, ok1 := Resolve(location)
	second, ok2 := Resolve(location)
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Equal(t, first, second)
}
