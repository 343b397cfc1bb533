package config

import "github.com/hashicorp/hcl/v2"

// BlockHandler processes one top-level block type. Preprocess sees every
// block before any is processed; Process runs in dependency order.
type BlockHandler interface {
	Preprocess(block *hcl.Block) hcl.Diagnostics
	FinishPreprocessing(config *Config) hcl.Diagnostics
	GetBlockDependencyId(block *hcl.Block) (string, hcl.Diagnostics)
	Process(config *Config, block *hcl.Block) hcl.Diagnostics
}

type BlockHandlerBase struct {
}

func (b *BlockHandlerBase) Preprocess(block *hcl.Block) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) FinishPreprocessing(config *Config) hcl.Diagnostics {
	return nil
}

func (b *BlockHandlerBase) GetBlockDependencyId(block *hcl.Block) (string, hcl.Diagnostics) {
	return "", nil
}

func (b *BlockHandlerBase) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	return nil
}

func GetBlockHandlers() map[string]BlockHandler {
	return map[string]BlockHandler{
		"assert":       NewAssertBlockHandler(),
		"const":        NewConstBlockHandler(),
		"cron":         NewCronBlockHandler(),
		"server":       NewServerBlockHandler(),
		"signals":      NewSignalsBlockHandler(),
		"subscription": NewSubscriptionBlockHandler(),
	}
}

var configSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "assert", LabelNames: []string{"name"}},
		{Type: "const"},
		{Type: "cron", LabelNames: []string{"name"}},
		{Type: "server", LabelNames: []string{"name"}},
		{Type: "signals"},
		{Type: "subscription", LabelNames: []string{"name"}},
	},
}
