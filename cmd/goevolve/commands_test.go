package main

import (
	"bytes"
	"net"

	"github.com/prometheus/client_golang/prometheus"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

func execute(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("goevolve", func() {
	It("runs the configured problem", func() {
		out, err := execute("run", "--config", "testdata/cylinder.yaml", "--generations", "20")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("20 generations"))
		Expect(out).To(ContainSubstring("Min x: "))
		Expect(out).To(ContainSubstring("Superchamp (generation"))
		Expect(out).To(ContainSubstring("diameter: "))
	})

	It("reports runs without feasible solutions", func() {
		out, err := execute("run", "--property", "x=2", "--fitness", "x", "--constraint", "x > 3", "--seed", "1")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("Terminated early after 0 generations"))
		Expect(out).To(ContainSubstring("No feasible solution found."))
	})

	It("skips the plot on request", func() {
		out, err := execute("run", "--generations", "3", "--no-plot", "--seed", "5")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).ToNot(ContainSubstring("Min x: "))
	})

	It("runs vector-evaluated selection", func() {
		out, err := execute("run", "--config", "testdata/vega.yaml", "--generations", "10", "--no-plot")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("Superchamp (generation"))
		Expect(out).To(ContainSubstring("max pi*diameter**2*height/4: "))
		Expect(out).To(ContainSubstring("min pi*diameter**2/2 + pi*diameter*height: "))
	})

	It("runs offspring selection", func() {
		out, err := execute("run", "--offspring", "49", "--population-size", "7", "--parents", "3",
			"--max-age", "15", "--self-adaptive", "--generations", "10", "--no-plot", "--seed", "3")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("10 generations"))
	})

	It("rejects property names the expressions cannot use", func() {
		_, err := execute("run", "--property", "e=4", "--property", "pi=4", "--fitness", "e + pi", "--constraint", "")
		Expect(err).To(HaveOccurred())
	})

	It("fails when the metrics address is taken", func() {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		defer taken.Close()

		_, err = execute("run", "--generations", "1", "--no-plot", "--metrics-addr", taken.Addr().String())
		Expect(err).To(MatchError(ContainSubstring("metrics server")))
	})

	It("closes the metrics error channel on shutdown", func() {
		server, serverErr, err := serveMetrics("127.0.0.1:0", prometheus.NewRegistry())
		Expect(err).ToNot(HaveOccurred())
		Expect(server.Close()).To(Succeed())
		Eventually(serverErr).Should(BeClosed())
	})

	It("evaluates genomes", func() {
		out, err := execute("eval", "01010.00100", "0100000100")
		Expect(err).ToNot(HaveOccurred())
		Expect(out).To(ContainSubstring("01010.00100 diameter: 10 height: 4 Fitness: 282.7433 Feasible: true"))
		Expect(out).To(ContainSubstring("01000.00100 diameter: 2 height: 4"))
		Expect(out).To(ContainSubstring("Feasible: false"))
	})

	It("rejects malformed genomes", func() {
		_, err := execute("eval", "0120")
		Expect(err).To(HaveOccurred())
		_, err = execute("eval", "0101")
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("bits",
		func(args []string, expected string) {
			out, err := execute(append([]string{"bits"}, args...)...)
			Expect(err).ToNot(HaveOccurred())
			Expect(out).To(Equal(expected))
		},
		Entry("0..31", []string{"0", "31"}, "5\n"),
		Entry("0..32", []string{"0", "32"}, "6\n"),
		Entry("with step", []string{"0", "10", "0.5"}, "5\n"),
	)

	It("rejects unknown log levels", func() {
		_, err := execute("--log-level", "loud", "bits", "0", "1")
		Expect(err).To(HaveOccurred())
	})
})
