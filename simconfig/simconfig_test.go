package simconfig

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"gridlock/cell"
)

func writeTempYaml(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYamlLoadsValidConfig(t *testing.T) {
	Convey("Given a well-formed config file", t, func() {
		path := writeTempYaml(t, `
baseGranMS: 100
simStartTime: "2026-01-01T00:00:00Z"
endTick: 1000
runSeed: 42
mutexStrategy: buffered
workGroups:
  - name: drivers
    numWorkers: 4
    tickStep: 1
`)
		Convey("it loads without error and resolves the buffered cell strategy", func() {
			cfg, err := FromYaml(path)
			So(err, ShouldBeNil)
			So(cfg.BaseGranMS, ShouldEqual, int64(100))
			So(cfg.WorkGroups[0].NumWorkers, ShouldEqual, 4)

			strat, err := cfg.CellStrategy()
			So(err, ShouldBeNil)
			So(strat, ShouldEqual, cell.Buffered)
		})
	})
}

func TestValidateRejectsMissingWorkGroups(t *testing.T) {
	Convey("Given a config with no work groups", t, func() {
		path := writeTempYaml(t, `
baseGranMS: 100
endTick: 10
`)
		Convey("FromYaml returns a validation error", func() {
			_, err := FromYaml(path)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDumpYAMLRoundTripsEffectiveConfig(t *testing.T) {
	Convey("Given a loaded config", t, func() {
		path := writeTempYaml(t, `
baseGranMS: 100
endTick: 10
workGroups:
  - name: drivers
    numWorkers: 2
    tickStep: 1
`)
		cfg, err := FromYaml(path)
		So(err, ShouldBeNil)

		Convey("DumpYAML produces non-empty YAML containing the work group name", func() {
			dump, err := cfg.DumpYAML()
			So(err, ShouldBeNil)
			So(dump, ShouldContainSubstring, "drivers")
		})
	})
}

func TestValidateRejectsUnknownMutexStrategy(t *testing.T) {
	Convey("Given a config with an unrecognized mutexStrategy", t, func() {
		path := writeTempYaml(t, `
baseGranMS: 100
endTick: 10
mutexStrategy: quantum
workGroups:
  - name: x
    numWorkers: 1
    tickStep: 1
`)
		Convey("FromYaml returns an error", func() {
			_, err := FromYaml(path)
			So(err, ShouldNotBeNil)
		})
	})
}
