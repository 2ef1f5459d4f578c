package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// Rating oracle configuration
	RatingCommand   string
	RatingPattern   string
	RatingModel     string
	RatingBatchSize int

	// Digest configuration
	DigestDir        string
	DigestWindowDays int
	DigestInterval   int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
