package entity

import (
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/clock"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
)

type ITaskContext interface {
	Clock() *clock.Clock
	LaneManager() ILaneManager
	TrafficLight() ITrafficLight
	VehicleManager() IVehicleManager
	RuntimeConfig() *config.RuntimeConfig
}
