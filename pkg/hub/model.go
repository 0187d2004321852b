package hub

// ModelConfig carries the architecture fields a hub config.json may
// declare. Families name them differently: MPT uses n_layers/d_model,
// GPT-2 n_layer/n_embd, Llama num_hidden_layers/hidden_size. The
// accessor methods pick whichever variant is present.
type ModelConfig struct {
	ModelType string `json:"model_type"`

	NLayers         int `json:"n_layers"`
	NLayer          int `json:"n_layer"`
	NumHiddenLayers int `json:"num_hidden_layers"`

	DModel     int `json:"d_model"`
	NEmbd      int `json:"n_embd"`
	HiddenSize int `json:"hidden_size"`

	NHeads            int `json:"n_heads"`
	NHead             int `json:"n_head"`
	NumAttentionHeads int `json:"num_attention_heads"`

	VocabSize int `json:"vocab_size"`

	MaxSeqLen             int `json:"max_seq_len"`
	NPositions            int `json:"n_positions"`
	MaxPositionEmbeddings int `json:"max_position_embeddings"`
}

// TokenizerConfig is the slice of tokenizer_config.json the tool cares
// about.
type TokenizerConfig struct {
	TokenizerClass string  `json:"tokenizer_class"`
	ModelMaxLength float64 `json:"model_max_length"`
}

func (m *ModelConfig) Layers() int {
	return firstNonZero(m.NLayers, m.NLayer, m.NumHiddenLayers)
}

func (m *ModelConfig) Hidden() int {
	return firstNonZero(m.DModel, m.NEmbd, m.HiddenSize)
}

func (m *ModelConfig) Heads() int {
	return firstNonZero(m.NHeads, m.NHead, m.NumAttentionHeads)
}

// ContextLength is the longest sequence the checkpoint was built for.
// Zero when the config does not declare one.
func (m *ModelConfig) ContextLength() int {
	return firstNonZero(m.MaxSeqLen, m.NPositions, m.MaxPositionEmbeddings)
}

// ParamsB estimates the parameter count in billions from the
// transformer shape: 12*L*H^2 for the blocks plus the embedding table.
func (m *ModelConfig) ParamsB() float64 {
	layers := float64(m.Layers())
	hidden := float64(m.Hidden())
	vocab := float64(m.VocabSize)
	if layers == 0 || hidden == 0 {
		return 0
	}
	return (12*layers*hidden*hidden + vocab*hidden) / 1e9
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
