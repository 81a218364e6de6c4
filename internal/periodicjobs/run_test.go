package periodicjobs_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redhat-data-and-ai/cortexstage/internal/periodicjobs"
)

type MockPeriodicTask struct {
	name     string
	interval time.Duration
	runCount atomic.Int32
}

func (m *MockPeriodicTask) GetName() string {
	return m.name
}

func (m *MockPeriodicTask) GetInterval() time.Duration {
	return m.interval
}

func (m *MockPeriodicTask) Run(_ context.Context) error {
	m.runCount.Add(1)
	return nil
}

var _ = Describe("PeriodicTaskManager", func() {
	var (
		manager *periodicjobs.PeriodicTaskManager
		ctx     context.Context
		cancel  context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		manager = periodicjobs.NewPeriodicTaskManager()
		manager.AddTask(&MockPeriodicTask{name: "task1", interval: 100 * time.Millisecond})
		manager.AddTask(&MockPeriodicTask{name: "task2", interval: 200 * time.Millisecond})
	})

	AfterEach(func() {
		cancel()
	})

	It("should run all tasks at their specified intervals", func() {
		Expect(manager.RunAll(ctx)).To(Succeed())

		for _, task := range manager.Tasks {
			mockTask, ok := task.(*MockPeriodicTask)
			Expect(ok).To(BeTrue())
			Eventually(mockTask.runCount.Load).WithTimeout(time.Second).Should(BeNumerically(">", 1),
				"task should have run more than once")
		}
	})

	It("should stop running tasks when context is canceled", func() {
		Expect(manager.RunAll(ctx)).To(Succeed())

		// Allow some time for tasks to run
		time.Sleep(300 * time.Millisecond)

		// Cancel the context to stop tasks
		cancel()

		// Allow some time for tasks to cancel and stop
		time.Sleep(300 * time.Millisecond)

		runCounts := make(map[string]int32)
		for _, task := range manager.Tasks {
			mockTask := task.(*MockPeriodicTask)
			runCounts[mockTask.GetName()] = mockTask.runCount.Load()
		}

		// Wait a bit to ensure no more runs occur
		time.Sleep(300 * time.Millisecond)

		for _, task := range manager.Tasks {
			mockTask := task.(*MockPeriodicTask)
			Expect(mockTask.runCount.Load()).To(Equal(runCounts[mockTask.GetName()]),
				"task should not run after context is canceled")
		}
	})

	It("should run a task with a zero interval exactly once", func() {
		once := &MockPeriodicTask{name: "once"}
		manager = periodicjobs.NewPeriodicTaskManager()
		manager.AddTask(once)

		Expect(manager.RunAll(ctx)).To(Succeed())

		Eventually(once.runCount.Load).WithTimeout(time.Second).Should(Equal(int32(1)))
		Consistently(once.runCount.Load).WithTimeout(300 * time.Millisecond).Should(Equal(int32(1)))
	})
})
