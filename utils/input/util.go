package input

import (
	"fmt"
	"os"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
)

// checkVehicle 检查车队记录：需要车辆属性，初始位置必须在某条车道上
func checkVehicle(p *personv2.Person, lanes int) error {
	attr := p.GetVehicleAttribute()
	if attr == nil {
		return fmt.Errorf("ignore vehicle %d without vehicle attribute", p.Id)
	}
	if attr.Length <= 0 || attr.Width <= 0 || attr.MaxSpeed <= 0 {
		return fmt.Errorf("ignore vehicle %d with bad attribute %v", p.Id, attr)
	}
	pos := p.GetHome().GetLanePosition()
	if pos == nil {
		return fmt.Errorf("ignore vehicle %d without lane position", p.Id)
	}
	if pos.LaneId < 0 || int(pos.LaneId) >= lanes || pos.S < 0 {
		return fmt.Errorf("ignore vehicle %d at bad position %v", p.Id, pos)
	}
	return nil
}

// preCheckCache 检查缓存目录是否可用
func preCheckCache(cacheDir string) bool {
	if cacheDir == "" {
		log.Info("disable input cache")
		return false
	}
	if stat, err := os.Stat(cacheDir); err == nil && stat.IsDir() {
		log.Infof("enable input cache at %s", cacheDir)
		return true
	}
	log.Errorf("disable input cache because invalid dir %s (not exist or file)", cacheDir)
	return false
}
