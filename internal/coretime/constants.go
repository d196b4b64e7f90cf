package coretime

const (
	MaxCoreTimePerCore    uint64 = 1024 // CoreTime a single core may consume within one block
	MaxCoreTimePerBlock   uint64 = 4096 // CoreTime all cores together may consume within one block
	MaxAssurancesPerBlock        = 256
	MaxDisputeAge         uint64 = 64
	MaxGuaranteeLookback  uint64 = 8 // slots a guarantee may trail the block it is included in
)
