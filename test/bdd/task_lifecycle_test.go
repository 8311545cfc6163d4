package bdd

import (
	"testing"

	"github.com/cucumber/godog"

	"github.com/fleetworks/wcs-go/test/bdd/steps"
)

func TestTaskLifecycle(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			steps.InitializeTaskLifecycleScenario(sc)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/domain/task_lifecycle.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run task lifecycle tests")
	}
}
