package config

import _ "embed"

// sampleCorpus is a small transcript set covering the demo queries.
//
//go:embed sample_corpus.yaml
var sampleCorpus []byte
