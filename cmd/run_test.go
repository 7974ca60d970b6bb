//go:build !integration

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStagingCSV = `name,url,industry,remote_policy,city,province,description,tags,hq_address
Acme Corp,acme.io/,SaaS,Hybrid,Calgary,AB,,,
Chain Co,chain.example,Blockchain,Remote,Toronto,ON,,,
`

const testCanonicalCSV = `id,name,url,industry,remote_policy,city,province,lat,lng,description,tags,hq_address
shopify-ottawa,Shopify,https://shopify.com,Ecommerce,Remote,Ottawa,ON,45.421500,-75.697200,,,
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_CheckReportsWithoutWriting(t *testing.T) {
	dir := chdirTemp(t, "")
	stagingPath := writeFixture(t, dir, "data/incoming.csv", testStagingCSV)
	datasetPath := writeFixture(t, dir, "companies.csv", testCanonicalCSV)

	out, err := execute(t, "--check")
	require.ErrorIs(t, err, errRejected)

	assert.Contains(t, out, "acme-corp-calgary")
	assert.Contains(t, out, `"Blockchain"`)
	assert.Contains(t, out, "Check: 1 valid, 1 rejected of 2 staged.")

	staged, err := os.ReadFile(stagingPath)
	require.NoError(t, err)
	assert.Equal(t, testStagingCSV, string(staged))
	canonical, err := os.ReadFile(datasetPath)
	require.NoError(t, err)
	assert.Equal(t, testCanonicalCSV, string(canonical))

	_, err = os.Stat(filepath.Join(dir, "data", "geocode_cache.db"))
	assert.True(t, os.IsNotExist(err), "check mode must not open the geocode cache")
}

func TestRun_CheckCleanBatchSucceeds(t *testing.T) {
	dir := chdirTemp(t, "")
	writeFixture(t, dir, "staged.csv", `name,url,industry,remote_policy,city,province,description,tags,hq_address
Acme Corp,https://acme.io,SaaS,Hybrid,Calgary,AB,,,
`)

	out, err := execute(t, "--check", "--input", "staged.csv", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"check": true`)
	assert.Contains(t, out, `"status": "valid"`)
}

func TestRun_EmptyStagingIsNoop(t *testing.T) {
	dir := chdirTemp(t, "")
	writeFixture(t, dir, "data/incoming.csv", "")

	out, err := execute(t, "--check")
	require.NoError(t, err)
	assert.Contains(t, out, "No staged entries")
}

func TestRun_MissingStagingFails(t *testing.T) {
	chdirTemp(t, "")

	_, err := execute(t, "--check", "--input", "nope.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.csv")
}
