package triage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevels_OrderedByPriority(t *testing.T) {
	levels := Levels()
	require.Len(t, levels, 5)
	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i-1].MoreUrgentThan(levels[i]), "%s should be more urgent than %s", levels[i-1], levels[i])
	}
}

func TestDescribe_MaxWait(t *testing.T) {
	want := map[Level]int{LevelRed: 0, LevelOrange: 10, LevelYellow: 60, LevelGreen: 120, LevelBlue: 240}
	for l, mins := range want {
		info, ok := Describe(l)
		require.True(t, ok)
		assert.Equal(t, mins, info.MaxWaitMins)
		assert.Equal(t, time.Duration(mins)*time.Minute, info.MaxWait)
	}

	_, ok := Describe(Level(9))
	assert.False(t, ok)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"red", LevelRed},
		{"VERMELHO", LevelRed},
		{" laranja ", LevelOrange},
		{"3", LevelYellow},
		{"verde", LevelGreen},
		{"blue", LevelBlue},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("purple")
	assert.Error(t, err)
	_, err = ParseLevel("0")
	assert.Error(t, err)
}

func TestLevel_JSON(t *testing.T) {
	b, err := json.Marshal(LevelOrange)
	require.NoError(t, err)
	assert.Equal(t, `"orange"`, string(b))

	var l Level
	require.NoError(t, json.Unmarshal([]byte(`"amarelo"`), &l))
	assert.Equal(t, LevelYellow, l)
	require.NoError(t, json.Unmarshal([]byte(`1`), &l))
	assert.Equal(t, LevelRed, l)
	assert.Error(t, json.Unmarshal([]byte(`7`), &l))

	_, err = json.Marshal(Level(0))
	assert.Error(t, err)
}

func TestMostUrgent(t *testing.T) {
	red, green := LevelRed, LevelGreen

	_, ok := MostUrgent(nil, nil)
	assert.False(t, ok)

	got, ok := MostUrgent(&green, nil, &red)
	require.True(t, ok)
	assert.Equal(t, LevelRed, got)

	got, ok = MostUrgent(&green)
	require.True(t, ok)
	assert.Equal(t, LevelGreen, got)
}
