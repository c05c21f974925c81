package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/posebridge/internal/bridge"
	"github.com/nerrad567/posebridge/internal/slot"
)

// Measurement names written by Telemetry.
const (
	MeasurementSlotRecord = "slot_record"
	MeasurementPublish    = "publish"
	MeasurementConnection = "connection"
)

// PointWriter accepts points for asynchronous delivery. *Client implements it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Telemetry records bridge activity as InfluxDB points. Every point carries
// a site tag so several bridges can share a bucket.
type Telemetry struct {
	w    PointWriter
	site string
	now  func() time.Time
}

var _ bridge.Telemetry = (*Telemetry)(nil)

// NewTelemetry returns a bridge.Telemetry writing to w.
func NewTelemetry(w PointWriter, site string) *Telemetry {
	return &Telemetry{w: w, site: site, now: time.Now}
}

func (t *Telemetry) point(measurement string) *write.Point {
	return write.NewPointWithMeasurement(measurement).
		AddTag("site", t.site).
		SetTime(t.now())
}

func (t *Telemetry) emit(p *write.Point) {
	t.w.WritePoint(p.SortTags().SortFields())
}

// RecordPublish writes one point per publish with its outcome.
func (t *Telemetry) RecordPublish(result bridge.ResultCode, slots int) {
	t.emit(t.point(MeasurementPublish).
		AddTag("result", result.String()).
		AddField("slots", slots))
}

// RecordSlot writes the six channel values of one slot.
func (t *Telemetry) RecordSlot(index int, record slot.Record) {
	t.emit(t.point(MeasurementSlotRecord).
		AddTag("slot", strconv.Itoa(index)).
		AddField("x", record.X).
		AddField("y", record.Y).
		AddField("z", record.Z).
		AddField("pitch", record.Pitch).
		AddField("roll", record.Roll).
		AddField("yaw", record.Yaw))
}

// RecordConnection writes a point for each connection state change.
func (t *Telemetry) RecordConnection(state bridge.ConnectionState) {
	t.emit(t.point(MeasurementConnection).
		AddTag("state", state.String()).
		AddField("value", 1))
}
