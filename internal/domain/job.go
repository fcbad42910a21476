package domain

import "time"

// JobSpec is a recurring ingestion job as the scheduler sees it.
type JobSpec struct {
	Name         string
	Source       string
	Cron         string
	Timezone     string
	MisfireGrace time.Duration
	Window       time.Duration
}

// RunReport summarizes one ingestion run.
type RunReport struct {
	Job       string
	Processed int
	Added     int
	Skipped   int
	Started   time.Time
	Finished  time.Time
}
