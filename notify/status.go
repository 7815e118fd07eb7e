package notify

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

// JobState is the closed set of job lifecycle states.
type JobState uint8

const (
	StatePending JobState = iota
	StateRunning
	StateCompleted
	StateFailed
)

// String returns the wire-stable name of the state.
func (s JobState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// JobStatus is the stored snapshot of a job's progress. Result carries the
// handler's output for completed jobs; Error carries the failure message
// for failed ones.
type JobStatus struct {
	State     JobState
	Result    string
	Error     string
	UpdatedAt time.Time
}

const statusRecordVersionV1 = 1

var errStatusRecordMalformed = errors.New("notify: malformed status record")

func encodeStatus(st JobStatus) ([]byte, error) {
	if len(st.Result) > 65535 || len(st.Error) > 65535 {
		return nil, errors.New("notify: status field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(statusRecordVersionV1)
	buf.WriteByte(byte(st.State))

	if err := binary.Write(&buf, binary.BigEndian, st.UpdatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(st.Result))); err != nil {
		return nil, err
	}
	buf.WriteString(st.Result)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(st.Error))); err != nil {
		return nil, err
	}
	buf.WriteString(st.Error)

	return buf.Bytes(), nil
}

func decodeStatus(data []byte) (JobStatus, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != statusRecordVersionV1 {
		return JobStatus{}, errStatusRecordMalformed
	}

	stateByte, err := reader.ReadByte()
	if err != nil || JobState(stateByte) > StateFailed {
		return JobStatus{}, errStatusRecordMalformed
	}

	var updatedAt int64
	if err := binary.Read(reader, binary.BigEndian, &updatedAt); err != nil {
		return JobStatus{}, errStatusRecordMalformed
	}

	result, err := readLengthPrefixed(reader)
	if err != nil {
		return JobStatus{}, errStatusRecordMalformed
	}
	errMsg, err := readLengthPrefixed(reader)
	if err != nil {
		return JobStatus{}, errStatusRecordMalformed
	}

	return JobStatus{
		State:     JobState(stateByte),
		Result:    result,
		Error:     errMsg,
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}, nil
}

func readLengthPrefixed(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
