package repo

import "time"

// FileVersion describes one revision of one named file. The root version of
// a file always has IsDelta=false and an empty ParentHash.
type FileVersion struct {
	Hash       string    `json:"hash"`
	ParentHash string    `json:"parentHash"`
	Timestamp  time.Time `json:"timestamp"`
	Author     string    `json:"author"`
	Message    string    `json:"message"`
	IsDelta    bool      `json:"isDelta"`
}
