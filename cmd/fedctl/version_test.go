package fedctl

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommand_PrintsConfiguredVersion(t *testing.T) {
	defer func() { rootCmd.Version = "" }()
	rootCmd.Version = "9.9.9"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	assert.Equal(t, "fedctl version 9.9.9\n", buf.String())
}
