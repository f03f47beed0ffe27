package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type jointState struct {
	Joint int
	value float64
}

type waypoint struct {
	step   int
	Joints []float64
	Meta   struct {
		Fixed bool
	}
}

// checkConsoleLine compares one console line column by column. The timestamp only has to have the layout's
// width and the caller only has to name the right file.
func checkConsoleLine(t *testing.T, buf *bytes.Buffer, level, msg, fieldsJSON string) {
	t.Helper()
	line, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	cols := strings.Split(strings.TrimSuffix(line, "\n"), "\t")

	test.That(t, len(cols[0]), test.ShouldEqual, len(DefaultTimeFormatStr))
	test.That(t, cols[1], test.ShouldEqual, level)
	file, lineNo, found := strings.Cut(cols[2], ":")
	test.That(t, found, test.ShouldBeTrue)
	test.That(t, file, test.ShouldEqual, "logging/impl_test.go")
	_, err = strconv.Atoi(lineNo)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cols[3], test.ShouldEqual, msg)

	if fieldsJSON == "" {
		test.That(t, cols, test.ShouldHaveLength, 4)
		return
	}
	test.That(t, cols, test.ShouldHaveLength, 5)
	var want, got map[string]interface{}
	test.That(t, json.Unmarshal([]byte(fieldsJSON), &want), test.ShouldBeNil)
	test.That(t, json.Unmarshal([]byte(cols[4]), &got), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, want)
}

func TestConsoleOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := &impl{"", NewAtomicLevelAt(DEBUG), false, []Appender{NewWriterAppender(buf)}}

	logger.Info("plain")
	checkConsoleLine(t, buf, "INFO", "plain", "")

	logger.Warnf("iteration %d of %d", 3, 10)
	checkConsoleLine(t, buf, "WARN", "iteration 3 of 10", "")

	logger.Debugw("step", "merit", 1.5, "status", "Iterating")
	checkConsoleLine(t, buf, "DEBUG", "step", `{"merit":1.5,"status":"Iterating"}`)

	// only exported fields are serialized
	logger.Infow("joint", "state", jointState{2, 0.1})
	checkConsoleLine(t, buf, "INFO", "joint", `{"state":{"Joint":2}}`)

	wp := waypoint{step: 4, Joints: []float64{0, 1}}
	wp.Meta.Fixed = true
	logger.Errorw("waypoint", "wp", wp)
	checkConsoleLine(t, buf, "ERROR", "waypoint", `{"wp":{"Joints":[0,1],"Meta":{"Fixed":true}}}`)

	logger.Infow("formatted", "wp", fmt.Sprintf("%+v", jointState{1, 2}))
	checkConsoleLine(t, buf, "INFO", "formatted", `{"wp":"{Joint:1 value:2}"}`)
}

func TestLevels(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.SetLevel(WARN)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)

	logger.Debug("dropped")
	logger.Infow("dropped", "k", 1)
	logger.Warnf("kept %d", 1)
	logger.Errorw("kept", "k", 2)

	entries := observed.All()
	test.That(t, entries, test.ShouldHaveLength, 2)
	test.That(t, entries[0].Message, test.ShouldEqual, "kept 1")
	test.That(t, entries[1].ContextMap(), test.ShouldResemble, map[string]interface{}{"k": int64(2)})

	// unpaired keys are reported instead of silently discarded
	logger.Errorw("unpaired", "lonely")
	last := observed.All()[2]
	test.That(t, last.ContextMap()["lonely"], test.ShouldEqual, "unpaired log key")
}

func TestSubloggerAndZap(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("solver").Sublogger("qp")
	sub.Info("hello")
	test.That(t, observed.All()[0].LoggerName, test.ShouldEqual, "solver.qp")

	// changing the child's level leaves the parent alone
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)

	logger.AsZap().Infow("through zap", "iter", 3)
	entries := observed.FilterMessage("through zap").All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].ContextMap()["iter"], test.ShouldEqual, int64(3))
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{{"debug", DEBUG}, {"INFO", INFO}, {"warning", WARN}, {"Error", ERROR}} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.want)
	}
	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}
