// Command demo drives the three reactor variants with simulated clients,
// mirroring the kind of traffic a real acceptor and poller would produce.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ebar-go/reactor"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
)

func main() {
	var verbosity int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "simulated reactor pattern demonstrations",
		Long:  "runs the single-thread, multi-thread and master-slave reactor variants against simulated client traffic",
	}
	cmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "log verbosity (0 operational, 1 loop chatter)")

	logger := func() logr.Logger {
		return funcr.New(func(prefix, args string) {
			fmt.Println(prefix, args)
		}, funcr.Options{Verbosity: verbosity})
	}

	cmd.AddCommand(singleCmd(logger), multiCmd(logger), masterSlaveCmd(logger), benchCmd(logger))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func singleCmd(logger func() logr.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "single",
		Short: "single-thread reactor: one goroutine waits and dispatches",
		Run: func(cmd *cobra.Command, args []string) {
			r := reactor.NewSingleThreadReactor("demo-single", reactor.WithLogger(logger()))
			go r.Start()
			waitRunning(r.IsRunning)

			r.SubmitEvent(reactor.NewEvent(reactor.EventAccept, "client-001 connect", "client-001"))
			r.SubmitEvent(reactor.NewEvent(reactor.EventRead, "HELLO from client-001", "client-001"))
			r.SubmitEvent(reactor.NewEvent(reactor.EventWrite, "welcome client-001", "client-001"))
			r.SubmitEvent(reactor.NewEvent(reactor.EventAccept, "client-002 connect", "client-002"))
			r.SubmitEvent(reactor.NewEvent(reactor.EventRead, "DATA from client-002", "client-002"))

			drain(r.PendingEventCount, 3*time.Second)
			r.Stop()
			r.PrintStatistics()
		},
	}
}

func multiCmd(logger func() logr.Logger) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "multi",
		Short: "multi-thread reactor: one event loop, a pool of workers",
		Run: func(cmd *cobra.Command, args []string) {
			r := reactor.NewMultiThreadReactor("demo-multi", workers, reactor.WithLogger(logger()))
			r.Start()

			for i := 1; i <= 8; i++ {
				client := fmt.Sprintf("client-%03d", i)
				r.SubmitEvent(reactor.NewEvent(reactor.EventAccept, client+" connect", client))
				r.SubmitEvent(reactor.NewEvent(reactor.EventRead, "PING from "+client, client))
				r.SubmitEvent(reactor.NewEvent(reactor.EventWrite, "PONG to "+client, client))
			}

			drain(r.PendingEventCount, 5*time.Second)
			time.Sleep(500 * time.Millisecond)
			r.Stop()
			r.PrintStatistics()
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 4, "worker pool size")
	return cmd
}

func masterSlaveCmd(logger func() logr.Logger) *cobra.Command {
	var subs, workers int
	cmd := &cobra.Command{
		Use:   "masterslave",
		Short: "master-slave reactor: accept loop plus load-balanced sub reactors",
		Run: func(cmd *cobra.Command, args []string) {
			r := reactor.NewMasterSlaveReactor("demo-ms", subs, workers, reactor.WithLogger(logger()))
			r.Start()

			for i := 1; i <= 10; i++ {
				r.SimulateClientConnection(fmt.Sprintf("client-%03d", i))
			}
			for round := 1; round <= 3; round++ {
				for i := 1; i <= 10; i++ {
					client := fmt.Sprintf("client-%03d", i)
					r.SimulateDataRead(client, fmt.Sprintf("DATA-R%d from %s", round, client))
					r.SimulateDataWrite(client, fmt.Sprintf("RESPONSE-R%d to %s", round, client))
				}
			}

			drain(r.PendingEventCount, 10*time.Second)
			time.Sleep(500 * time.Millisecond)
			r.Stop()
			r.PrintStatistics()
		},
	}
	cmd.Flags().IntVarP(&subs, "subreactors", "s", 4, "number of sub reactors")
	cmd.Flags().IntVarP(&workers, "workers", "w", 8, "shared worker pool size")
	return cmd
}

func benchCmd(logger func() logr.Logger) *cobra.Command {
	var clients, opsPerClient int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "compare throughput of the three variants under identical load",
		Run: func(cmd *cobra.Command, args []string) {
			total := clients * (1 + 2*opsPerClient)
			fmt.Printf("load: %d clients x %d ops = %d events per variant\n", clients, opsPerClient, total)

			benchSingle(logger(), clients, opsPerClient)
			benchMulti(logger(), clients, opsPerClient)
			benchMasterSlave(logger(), clients, opsPerClient)
		},
	}
	cmd.Flags().IntVarP(&clients, "clients", "c", 20, "simulated client count")
	cmd.Flags().IntVarP(&opsPerClient, "ops", "o", 5, "read/write rounds per client")
	return cmd
}

func benchSingle(logger logr.Logger, clients, ops int) {
	r := reactor.NewSingleThreadReactor("bench-single", reactor.WithLogger(logr.Discard()))
	go r.Start()
	waitRunning(r.IsRunning)

	start := time.Now()
	submitLoad(r, clients, ops)
	drain(r.PendingEventCount, 5*time.Minute)
	report(logger, "single-thread", processed(r.AcceptHandler().ConnectionCount(),
		r.ReadHandler().ReadOperationCount(), r.WriteHandler().WriteOperationCount()), time.Since(start))
	r.Stop()
}

func benchMulti(logger logr.Logger, clients, ops int) {
	r := reactor.NewMultiThreadReactor("bench-multi", 8, reactor.WithLogger(logr.Discard()))
	r.Start()

	start := time.Now()
	submitLoad(r, clients, ops)
	drain(r.PendingEventCount, 5*time.Minute)
	time.Sleep(200 * time.Millisecond)
	report(logger, "multi-thread", processed(r.AcceptHandler().ConnectionCount(),
		r.ReadHandler().ReadOperationCount(), r.WriteHandler().WriteOperationCount()), time.Since(start))
	r.Stop()
}

func benchMasterSlave(logger logr.Logger, clients, ops int) {
	r := reactor.NewMasterSlaveReactor("bench-ms", 4, 8, reactor.WithLogger(logr.Discard()))
	r.Start()

	start := time.Now()
	for i := 0; i < clients; i++ {
		client := fmt.Sprintf("client-%03d", i)
		r.SimulateClientConnection(client)
		for op := 0; op < ops; op++ {
			r.SimulateDataRead(client, fmt.Sprintf("DATA-%d", op))
			r.SimulateDataWrite(client, fmt.Sprintf("RESPONSE-%d", op))
		}
	}
	drain(r.PendingEventCount, 5*time.Minute)
	time.Sleep(200 * time.Millisecond)
	report(logger, "master-slave", processed(r.AcceptHandler().ConnectionCount(),
		r.TotalReadOperations(), r.TotalWriteOperations()), time.Since(start))
	r.Stop()
}

func submitLoad(r reactor.EventSubmitter, clients, ops int) {
	for i := 0; i < clients; i++ {
		client := fmt.Sprintf("client-%03d", i)
		r.SubmitEvent(reactor.NewEvent(reactor.EventAccept, client+" connect", client))
		for op := 0; op < ops; op++ {
			r.SubmitEvent(reactor.NewEvent(reactor.EventRead, fmt.Sprintf("DATA-%d", op), client))
			r.SubmitEvent(reactor.NewEvent(reactor.EventWrite, fmt.Sprintf("RESPONSE-%d", op), client))
		}
	}
}

func processed(accepts, reads, writes int64) int64 {
	return accepts + reads + writes
}

func report(logger logr.Logger, variant string, events int64, elapsed time.Duration) {
	tps := float64(events) / elapsed.Seconds()
	fmt.Printf("%-14s processed=%d elapsed=%s throughput=%.1f events/s\n", variant, events, elapsed, tps)
	logger.Info("benchmark finished", "variant", variant, "events", events,
		"elapsed", elapsed.String(), "throughput", fmt.Sprintf("%.1f", tps))
}

func waitRunning(isRunning func() bool) {
	for !isRunning() {
		time.Sleep(5 * time.Millisecond)
	}
}

func drain(pending func() int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
}
