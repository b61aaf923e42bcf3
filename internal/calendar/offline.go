package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// dayRecord is one entry of a published holiday table: isOffDay=true
// marks a rest holiday, isOffDay=false marks a compensation workday.
type dayRecord struct {
	Date     string `json:"date"`
	IsOffDay bool   `json:"isOffDay"`
	Name     string `json:"name,omitempty"`
}

func (d dayRecord) classification() Classification {
	if d.IsOffDay {
		return Classification{IsHoliday: true, Label: d.Name}
	}
	return Classification{IsCompensationWorkday: true, Label: d.Name}
}

// yearTable indexes a published table by date string.
type yearTable map[string]dayRecord

// offlineDataset is a local file in the same shape as the remote yearly
// table, covering any number of years.
type offlineDataset struct {
	days yearTable
}

func emptyOfflineDataset() *offlineDataset {
	return &offlineDataset{days: yearTable{}}
}

func loadOfflineDataset(path string) (*offlineDataset, error) {
	if path == "" {
		return nil, fmt.Errorf("no dataset path configured")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}

	var payload struct {
		Days []dayRecord `json:"days"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", path, err)
	}

	days := make(yearTable, len(payload.Days))
	for _, d := range payload.Days {
		days[d.Date] = d
	}
	return &offlineDataset{days: days}, nil
}

// classify never fails: any lookup miss is a normal day.
func (o *offlineDataset) classify(date time.Time) Classification {
	if rec, ok := o.days[dayKey(date)]; ok {
		return rec.classification()
	}
	return Classification{}
}
