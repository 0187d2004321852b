package runspec

const (
	DefaultSaveInterval       = "1000ba"
	DefaultConsoleLogInterval = "1ba"
	DefaultPrecision          = "amp_bf16"
	DefaultInitDevice         = "cpu"
)

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

// ApplyDefaults fills unset optional fields in place so the rendered
// document states explicitly what the harness will do.
func (d *Document) ApplyDefaults() {
	if d.Seed == nil && d.GlobalSeed != nil {
		seed := *d.GlobalSeed
		d.Seed = &seed
	}

	if d.Precision == "" {
		d.Precision = DefaultPrecision
	}

	if d.DeviceTrainMicrobatchSize == nil {
		d.DeviceTrainMicrobatchSize = &IntOrAuto{Auto: true}
	}

	if d.EvalFirst == nil && d.EvalLoader != nil {
		d.EvalFirst = boolPtr(false)
	}
	if d.ProgressBar == nil {
		d.ProgressBar = boolPtr(false)
	}
	if d.LogToConsole == nil {
		d.LogToConsole = boolPtr(true)
	}
	if d.ConsoleLogInterval == "" {
		d.ConsoleLogInterval = DefaultConsoleLogInterval
	}

	if d.Model != nil {
		if d.Model.Pretrained == nil {
			d.Model.Pretrained = boolPtr(true)
		}
		if d.Model.InitDevice == "" {
			d.Model.InitDevice = DefaultInitDevice
		}
	}

	if d.TrainLoader != nil {
		applyLoaderDefaults(d.TrainLoader, true)
	}
	if d.EvalLoader != nil {
		applyLoaderDefaults(d.EvalLoader, false)
	}

	if d.SaveFolder != "" {
		if d.SaveInterval == "" {
			d.SaveInterval = DefaultSaveInterval
		}
		if d.SaveNumCheckpointsToKeep == nil {
			d.SaveNumCheckpointsToKeep = intPtr(-1)
		}
		if d.SaveOverwrite == nil {
			d.SaveOverwrite = boolPtr(false)
		}
		if d.Autoresume == nil {
			d.Autoresume = boolPtr(false)
		}
	}
}

func applyLoaderDefaults(l *Loader, train bool) {
	if l.DropLast == nil {
		l.DropLast = boolPtr(train)
	}
	if l.Dataset.AllowPadTrimming == nil {
		l.Dataset.AllowPadTrimming = boolPtr(false)
	}
	if l.Dataset.DecoderOnlyFormat == nil {
		l.Dataset.DecoderOnlyFormat = boolPtr(true)
	}
	if l.Dataset.Shuffle == nil {
		l.Dataset.Shuffle = boolPtr(train)
	}
}
