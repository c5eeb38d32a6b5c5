package e2e

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/coophouse/iocore/pkg/codec"
	"github.com/coophouse/iocore/pkg/datapoint"
	"github.com/coophouse/iocore/pkg/deviceinterp"
	"github.com/coophouse/iocore/pkg/equipment"
	"github.com/coophouse/iocore/pkg/errdefs"
	"github.com/coophouse/iocore/pkg/model"
	"github.com/coophouse/iocore/pkg/transport"
)

func newManager(store *memStore, virtual *memVirtualStore, drivers map[string]transport.Driver) *datapoint.Manager {
	factory := func(p model.Port) (transport.Driver, error) {
		if drv, ok := drivers[p.Name]; ok {
			return drv, nil
		}
		return transport.NewSimulatedDriver(), nil
	}
	return datapoint.New(store, virtual, factory, datapoint.WithSimulation())
}

var _ = Describe("digital read (S1)", func() {
	It("reads a coil through a virtual port's simulated transport", func() {
		store := newMemStore()
		store.ports["virtualA"] = model.Port{Name: "virtualA", Protocol: model.ProtocolModbusTCP, DevicePath: "sim"}
		store.dps["df_coil1"] = model.DataPoint{
			Name: "df_coil1", PortPath: "virtualA", SlaveID: 1, Register: 0, Channel: 3,
			ReadFn: model.ReadDigitalOutput,
		}

		drv := transport.NewSimulatedDriver()
		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"virtualA": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		drv.SetCoil(1, 2, true)

		entry, err := m.ReadDirect(context.Background(), "df_coil1")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Digital).NotTo(BeNil())
		Expect(entry.Digital.State).To(Equal(1))

		cached, err := m.Query("df_coil1")
		Expect(err).NotTo(HaveOccurred())
		Expect(cached.Digital.State).To(Equal(1))
	})
})

var _ = Describe("inversion (S2)", func() {
	It("flips both the read and the write of an inverted data point", func() {
		store := newMemStore()
		store.ports["line1"] = model.Port{Name: "line1", Protocol: model.ProtocolModbusTCP, DevicePath: "sim"}
		store.dps["fan_coil"] = model.DataPoint{
			Name: "fan_coil", PortPath: "line1", SlaveID: 1, Register: 0, Channel: 1,
			ReadFn: model.ReadDigitalOutput, WriteFn: model.WriteDigitalOutput, Inverted: true,
		}

		drv := transport.NewSimulatedDriver()
		drv.SetCoil(1, 0, true)
		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"line1": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		entry, err := m.ReadDirect(context.Background(), "fan_coil")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Digital.State).To(Equal(0))

		Expect(m.Command(context.Background(), "fan_coil", true)).To(Succeed())

		frame, err := drv.Request(context.Background(), transport.Command{Kind: transport.ReadCoils, SlaveID: 1, Addr: 0, Count: 1})
		Expect(err).NotTo(HaveOccurred())
		Expect(frame.Bits[0]).To(BeFalse())
	})
})

var _ = Describe("timeout skip (S3)", func() {
	It("skips a slave after exactly three consecutive timeouts", func() {
		store := newMemStore()
		store.ports["line1"] = model.Port{Name: "line1", Protocol: model.ProtocolModbusTCP, DevicePath: "flaky"}
		store.dps["temp"] = model.DataPoint{
			Name: "temp", PortPath: "line1", SlaveID: 1, Register: 10,
			ReadFn: model.ReadAnalogInput, ValueType: model.ValueType(codec.ValueTypeUint16),
		}

		drv := newTimeoutNTimesDriver(3)
		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"line1": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		_, err := m.ReadDirect(context.Background(), "temp")
		Expect(err).To(MatchError(errdefs.ErrTimeout))
		_, err = m.ReadDirect(context.Background(), "temp")
		Expect(err).To(MatchError(errdefs.ErrTimeout))
		_, err = m.ReadDirect(context.Background(), "temp")
		Expect(err).To(MatchError(errdefs.ErrTimeout))

		_, err = m.ReadDirect(context.Background(), "temp")
		Expect(err).To(MatchError(errdefs.ErrDeviceOfflineSkipped))
	})
})

var _ = Describe("reconnect (S4)", func() {
	It("reopens a killed port", func() {
		store := newMemStore()
		store.ports["line1"] = model.Port{Name: "line1", Protocol: model.ProtocolModbusTCP, DevicePath: "flaky"}
		store.dps["temp"] = model.DataPoint{
			Name: "temp", PortPath: "line1", SlaveID: 1, Register: 10,
			ReadFn: model.ReadAnalogInput, ValueType: model.ValueType(codec.ValueTypeUint16),
		}

		drv := newFlakyDriver()
		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"line1": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		drv.setHealthy(false)
		_, err := m.ReadDirect(context.Background(), "temp")
		Expect(err).To(MatchError(errdefs.ErrDisconnected))

		statusOf := func(name string) model.PortStatus {
			for _, s := range m.GetPortStatuses() {
				if s.Name == name {
					return s.Status
				}
			}
			return ""
		}
		Expect(statusOf("line1")).To(Equal(model.PortDisconnected))

		drv.setHealthy(true)
		Eventually(func() model.PortStatus { return statusOf("line1") }, 10*time.Second, 50*time.Millisecond).
			Should(Equal(model.PortConnected))
	})
})

var _ = Describe("generic device interpreter (S5)", func() {
	It("decodes a float32 field and a bitmask field from one batch", func() {
		store := newMemStore()
		store.ports["line1"] = model.Port{Name: "line1", Protocol: model.ProtocolModbusTCP, DevicePath: "sim"}

		drv := transport.NewSimulatedDriver()
		// flow_rate = 1.0 as float32 (0x3F800000), little-endian word order
		drv.SetRegister(1, 5, 0x0000)
		drv.SetRegister(1, 6, 0x3F80)
		drv.SetRegister(1, 28, 0x0001) // valve_status bit 0 set

		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"line1": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		tmpl := &deviceinterp.Template{
			FunctionCode: deviceinterp.FunctionHolding,
			BatchStart:   1,
			BatchCount:   28,
			Registers: []deviceinterp.FieldDescriptor{
				{Name: "flow_rate", Address: 5, Count: 2, Type: codec.ValueTypeFloat32LE, Access: "r"},
				{
					Name: "valve_status", Address: 28, Count: 1, Type: codec.ValueTypeBitmask, Access: "r",
					Bits: map[string]string{"0": "open", "1": "closed", "2": "abnormal", "3": "low_battery"},
				},
			},
		}

		rec, err := m.ReadGenericRecord(context.Background(), "line1", 1, tmpl)
		Expect(err).NotTo(HaveOccurred())
		Expect(rec["flow_rate"]).To(BeNumerically("~", 1.0, 0.001))
		Expect(rec["valve_status"]).To(Equal(map[string]bool{
			"open": true, "closed": false, "abnormal": false, "low_battery": false,
		}))
	})
})

var _ = Describe("equipment controller reconciliation (S6)", func() {
	It("flags on_but_not_running after two mismatched ticks, then clears it", func() {
		store := newMemStore()
		store.ports["line1"] = model.Port{Name: "line1", Protocol: model.ProtocolModbusTCP, DevicePath: "sim"}
		store.dps["fan_cmd"] = model.DataPoint{
			Name: "fan_cmd", PortPath: "line1", SlaveID: 1, Register: 0, Channel: 1,
			ReadFn: model.ReadDigitalOutput, WriteFn: model.WriteDigitalOutput,
		}
		store.dps["fan_fb"] = model.DataPoint{
			Name: "fan_fb", PortPath: "line1", SlaveID: 1, Register: 1, Channel: 1,
			ReadFn: model.ReadDigitalInput,
		}

		drv := transport.NewSimulatedDriver()
		m := newManager(store, newMemVirtualStore(), map[string]transport.Driver{"line1": drv})
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		cfg, err := equipment.NewConfig("fan1", "Supply Fan 1").
			WithOnOff("fan_cmd").
			WithFeedback("fan_fb").
			WithTickInterval(20 * time.Millisecond).
			WithMismatchTicks(2).
			Build()
		Expect(err).NotTo(HaveOccurred())

		ctrl := equipment.New(m, cfg)
		Expect(m.Command(context.Background(), "fan_cmd", true)).To(Succeed())
		drv.SetInputBit(1, 1, false)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctrl.Start(ctx)
		defer ctrl.Close()

		Eventually(func() equipment.ErrorKind { return ctrl.State().Error }, time.Second, 10*time.Millisecond).
			Should(Equal(equipment.ErrorOnButNotRunning))
		Expect(ctrl.State().ErrorMessage).To(Equal("ON BUT NOT RUNNING"))

		drv.SetInputBit(1, 1, true)
		Eventually(func() equipment.ErrorKind { return ctrl.State().Error }, time.Second, 10*time.Millisecond).
			Should(Equal(equipment.ErrorNone))
	})
})

var _ = Describe("virtual data points (invariant 11)", func() {
	It("never touches a port worker, only the virtual state table", func() {
		store := newMemStore()
		store.dps["lamp"] = model.DataPoint{
			Name: "lamp", SlaveID: 7, Channel: 2,
			ReadFn: model.ReadVirtualDigitalOut, WriteFn: model.WriteVirtualDigitalOut,
		}

		virtual := newMemVirtualStore()
		m := newManager(store, virtual, nil)
		Expect(m.Start(context.Background())).To(Succeed())
		defer m.Close()

		Expect(m.GetPortStatuses()).To(BeEmpty())

		Expect(m.Command(context.Background(), "lamp", true)).To(Succeed())
		entry, err := m.ReadDirect(context.Background(), "lamp")
		Expect(err).NotTo(HaveOccurred())
		Expect(entry.Digital.State).To(Equal(1))

		v, err := virtual.ReadVirtualDigital(context.Background(), 7, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeTrue())
	})
})
