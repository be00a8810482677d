package nfcast

import (
	"sync"
)

// Pools for struct reuse to reduce GC pressure on the hot decode path.
var (
	recordPool = sync.Pool{
		New: func() interface{} { return &MarketRecord{} },
	}
)

// AcquireRecord gets a zeroed MarketRecord from the pool.
func AcquireRecord() *MarketRecord {
	return recordPool.Get().(*MarketRecord)
}

// ReleaseRecord returns a record to the pool. The record must not be
// used after release; its depth slices are dropped, not reused.
func ReleaseRecord(r *MarketRecord) {
	if r == nil {
		return
	}
	*r = MarketRecord{}
	recordPool.Put(r)
}

// WithRecords decodes a packet and calls fn with the decoded records,
// acquiring them from the pool and returning all of them after fn
// returns. Records are only valid during the callback; retain by
// copying the struct.
func (d *Decoder) WithRecords(data []byte, fn func(*Header, []*MarketRecord) error) error {
	header, err := d.ParseHeader(data)
	if err != nil {
		return err
	}
	if err := d.ValidateLength(header, data); err != nil {
		return err
	}

	var records []*MarketRecord
	if d.profile.Compressed {
		records, _ = d.decodeCompressedBody(data)
	} else {
		records, _ = d.decodeSlots(data, d.parseRecordPooled)
	}
	defer func() {
		for _, r := range records {
			ReleaseRecord(r)
		}
	}()
	return fn(header, records)
}
