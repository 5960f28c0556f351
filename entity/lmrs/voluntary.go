package lmrs

import (
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/entity"
	cf "github.com/tsinghua-fib-lab/agentsociety-lmrs/entity/carfollowing"
	"gonum.org/v1/gonum/floats"
)

// legalSide 相邻车道存在且当前位置允许合法变道
func legalSide(p entity.IPerception, lat entity.LateralDirectionality) bool {
	return p.CrossSection(entity.RelativeLaneOf(lat, 1)) &&
		p.LegalLaneChangePossibility(entity.LaneCurrent, lat) > 0
}

// anticipatedSpeed 车道的预期速度
// 算法说明：x0范围内每辆前车贡献 vLead + (vDes - vLead)*x/x0，取所有贡献与期望速度的最小值
func anticipatedSpeed(ctx *Context, lane entity.RelativeLane, x0 float64) (float64, error) {
	vDes, err := ctx.Model.DesiredSpeed(ctx.Params, ctx.SliAt(lane, 0))
	if err != nil {
		return 0, err
	}
	speeds := []float64{vDes}
	for _, g := range ctx.Perception.Leaders(lane) {
		x := 0.
		if !g.Parallel {
			x = math.Max(g.Distance, 0)
		}
		if x > x0 {
			break
		}
		speeds = append(speeds, g.Speed+(vDes-g.Speed)*x/x0)
	}
	return floats.Min(speeds), nil
}

// SpeedWithCourtesy 速度收益与礼让激励
// 算法说明：
// 1. 加速度收益系数 aGain = (a - max(当前加速度, 0))/a
// 2. 左侧意愿 = aGain*(v左 - v当前)/vGain
// 3. 右侧意愿同理，但当前车道未拥堵(v当前 >= vCong)时不允许从右侧超车，只保留负值
// 4. 礼让：相邻车道希望并入本车道的车辆使本车倾向于让向另一侧；
// 隔一条车道希望并入同一车道的车辆使本车不愿并入该车道
type SpeedWithCourtesy struct{}

func (SpeedWithCourtesy) Name() string { return "speed_with_courtesy" }

func (SpeedWithCourtesy) Desire(ctx *Context, _, _ Desire) (Desire, error) {
	r := ctx.Params.Reader()
	a, vGain, vCong, x0 := r.Get(cf.A), r.Get(VGAIN), r.Get(VCONG), r.Get(LOOKAHEAD)
	if err := r.Err(); err != nil {
		return Desire{}, err
	}
	aGain := math.Max(0, (a-math.Max(ctx.Ego.Acceleration, 0))/a)
	vCur, err := anticipatedSpeed(ctx, entity.LaneCurrent, x0)
	if err != nil {
		return Desire{}, err
	}
	var d Desire
	if legalSide(ctx.Perception, entity.DirLeft) {
		vLeft, err := anticipatedSpeed(ctx, entity.LaneLeft, x0)
		if err != nil {
			return Desire{}, err
		}
		d.Left = aGain * (vLeft - vCur) / vGain
	}
	if legalSide(ctx.Perception, entity.DirRight) {
		vRight, err := anticipatedSpeed(ctx, entity.LaneRight, x0)
		if err != nil {
			return Desire{}, err
		}
		gain := vRight - vCur
		if vCur >= vCong {
			gain = math.Min(gain, 0)
		}
		d.Right = aGain * gain / vGain
	}
	c, err := courtesyDesire(ctx, x0)
	if err != nil {
		return Desire{}, err
	}
	d.Left += c.Left
	d.Right += c.Right
	return d, nil
}

// courtesyDesire 礼让意愿
func courtesyDesire(ctx *Context, x0 float64) (Desire, error) {
	r := ctx.Params.Reader()
	sigma, courtesy := r.Get(SOCIO), r.Get(COURTESY)
	if err := r.Err(); err != nil {
		return Desire{}, err
	}
	weight := sigma * courtesy
	if weight == 0 {
		return Desire{}, nil
	}
	proximity := func(g *entity.HeadwayGtu) float64 {
		if g.Parallel {
			return 1
		}
		return 1 - math.Min(math.Abs(g.Distance), x0)/x0
	}
	nearest := func(lane entity.RelativeLane) []*entity.HeadwayGtu {
		var out []*entity.HeadwayGtu
		if g := firstNonParallel(ctx.Perception.Leaders(lane)); g != nil {
			out = append(out, g)
		}
		if g := firstNonParallel(ctx.Perception.Followers(lane)); g != nil {
			out = append(out, g)
		}
		return out
	}
	var d Desire
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		adjacent := entity.RelativeLaneOf(lat, 1)
		if !ctx.Perception.CrossSection(adjacent) {
			continue
		}
		toUs := lat.Flip()
		// 相邻车道希望并入本车道的车辆
		neighbors := append(nearest(adjacent), ctx.Perception.Alongside(lat)...)
		yield := 0.
		for _, g := range neighbors {
			yield = math.Max(yield, publishedDesire(g, toUs)*proximity(g))
		}
		// 隔一条车道希望并入相邻车道的车辆
		avoid := 0.
		if second := entity.RelativeLaneOf(lat, 2); ctx.Perception.CrossSection(second) {
			for _, g := range nearest(second) {
				avoid = math.Max(avoid, publishedDesire(g, toUs)*proximity(g))
			}
		}
		if toUs == entity.DirLeft {
			d.Left += weight * yield
			d.Right -= weight * avoid
		} else {
			d.Right += weight * yield
			d.Left -= weight * avoid
		}
	}
	return d, nil
}

// Keep 靠右行驶激励
// 说明：强制或自愿意愿已表明不向右，或右侧不可合法变道时为0，否则向右意愿为dFree
type Keep struct{}

func (Keep) Name() string { return "keep" }

func (Keep) Desire(ctx *Context, mandatory, voluntary Desire) (Desire, error) {
	if mandatory.Right < 0 || voluntary.Right < 0 || !legalSide(ctx.Perception, entity.DirRight) {
		return Desire{}, nil
	}
	dFree, err := ctx.Params.Get(DFREE)
	if err != nil {
		return Desire{}, err
	}
	return Desire{Right: dFree}, nil
}

// SocioSpeed 社会性速度激励
// 算法说明：
// 1. 当前车道后车对本车施压且期望速度更高时，向右让路：dRight = sigma*rho
// 2. 向左变道会对左侧后车造成压力rho'时：dLeft = -sigma*rho'
type SocioSpeed struct{}

func (SocioSpeed) Name() string { return "socio_speed" }

func (SocioSpeed) Desire(ctx *Context, _, _ Desire) (Desire, error) {
	sigma, err := ctx.Params.Get(SOCIO)
	if err != nil {
		return Desire{}, err
	}
	var d Desire
	if legalSide(ctx.Perception, entity.DirRight) {
		f := firstNonParallel(ctx.Perception.Followers(entity.LaneCurrent))
		if f != nil && f.State != nil && f.State.Rho > 0 && f.State.DesiredSpeed > ctx.DesiredSpeed {
			d.Right = sigma * f.State.Rho
		}
	}
	if legalSide(ctx.Perception, entity.DirLeft) {
		f := firstNonParallel(ctx.Perception.Followers(entity.LaneLeft))
		if f != nil {
			vDes := f.Speed
			if f.State != nil && f.State.DesiredSpeed > 0 {
				vDes = f.State.DesiredSpeed
			}
			params := ctx.Params
			if f.Parameters != nil && f.Parameters.Contains(VGAIN) && f.Parameters.Contains(LOOKAHEAD) {
				params = f.Parameters
			}
			rho, err := SocialPressure(params, vDes, ctx.Ego.Speed, -f.Distance)
			if err != nil {
				return Desire{}, err
			}
			d.Left = -sigma * rho
		}
	}
	return d, nil
}

// Queue 排队激励
// 功能：接近停车线时倾向于排队车辆较少的车道
// 算法说明：各车道统计停车线前速度低于vCong的前车数q，意愿为(q当前 - q相邻)/(q当前 + q相邻)
type Queue struct{}

func (Queue) Name() string { return "queue" }

func (Queue) Desire(ctx *Context, mandatory, _ Desire) (Desire, error) {
	r := ctx.Params.Reader()
	x0, vCong := r.Get(LOOKAHEAD), r.Get(VCONG)
	if err := r.Err(); err != nil {
		return Desire{}, err
	}
	queue := func(lane entity.RelativeLane) (int, bool) {
		lights := ctx.Perception.TrafficLights(lane)
		if len(lights) == 0 || lights[0].Distance > x0 {
			return 0, false
		}
		stopLine := lights[0].Distance
		leaders := lo.Filter(ctx.Perception.Leaders(lane), func(g *entity.HeadwayGtu, _ int) bool {
			return !g.Parallel && g.Distance < stopLine && g.Speed < vCong
		})
		return len(leaders), true
	}
	qCur, ok := queue(entity.LaneCurrent)
	if !ok {
		return Desire{}, nil
	}
	var d Desire
	for _, lat := range []entity.LateralDirectionality{entity.DirLeft, entity.DirRight} {
		if !legalSide(ctx.Perception, lat) || mandatory.Get(lat) < 0 {
			continue
		}
		qSide, ok := queue(entity.RelativeLaneOf(lat, 1))
		if !ok || qCur+qSide == 0 {
			continue
		}
		v := float64(qCur-qSide) / float64(qCur+qSide)
		if lat == entity.DirLeft {
			d.Left = v
		} else {
			d.Right = v
		}
	}
	return d, nil
}

// StayRight 停留在最右两条车道的激励（货车）
// 算法说明：
// 1. 右侧还有车道时不愿向左（强制向左时除外）：dLeft = -1
// 2. 右侧还有两条及以上车道时向右意愿为dSync（强制意愿不向右时除外）
type StayRight struct{}

func (StayRight) Name() string { return "stay_right" }

func (StayRight) Desire(ctx *Context, mandatory, _ Desire) (Desire, error) {
	dSync, err := ctx.Params.Get(DSYNC)
	if err != nil {
		return Desire{}, err
	}
	nRight := 0
	for ctx.Perception.CrossSection(entity.RelativeLaneOf(entity.DirRight, nRight+1)) {
		nRight++
	}
	var d Desire
	if mandatory.Left <= 0 && nRight >= 1 {
		d.Left = -1
	}
	if mandatory.Right >= 0 && nRight >= 2 {
		d.Right = dSync
	}
	return d, nil
}
