package vehicle

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"

	"connectrpc.com/connect"
	"git.fiblab.net/general/common/v2/parallel"
	"git.fiblab.net/sim/syncer/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"git.fiblab.net/sim/protos/v2/go/city/person/v2/personv2connect"
)

// Register 将车辆管理器注册到Sidecar
func (m *VehicleManager) Register(sidecar *syncer.Sidecar) {
	sidecar.Register(
		personv2connect.PersonServiceName,
		func(opts ...connect.HandlerOption) (pattern string, handler http.Handler) {
			return personv2connect.NewPersonServiceHandler(m, opts...)
		},
	)
}

// personv2connect.PersonService

// GetPerson 获取车辆信息
func (m *VehicleManager) GetPerson(ctx context.Context, in *connect.Request[personv2.GetPersonRequest]) (*connect.Response[personv2.GetPersonResponse], error) {
	v, ok := m.data[in.Msg.PersonId]
	if !ok {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("no id %d in vehicle data", in.Msg.PersonId))
	}
	res := &personv2.GetPersonResponse{
		Person: v.ToPersonRuntimePb(true),
	}
	return connect.NewResponse(res), nil
}

// GetPersons 获取多辆车的信息
// 功能：批量获取车辆信息，支持ID筛选和状态排除
// 说明：包括尚未上路和已经离开的车辆，结果按ID排序；请求中包含不存在的ID时返回错误
func (m *VehicleManager) GetPersons(ctx context.Context, in *connect.Request[personv2.GetPersonsRequest]) (*connect.Response[personv2.GetPersonsResponse], error) {
	req := in.Msg
	all := lo.Values(m.data)
	slices.SortFunc(all, func(a, b *Vehicle) int { return cmp.Compare(a.id, b.id) })
	vehicles, missing := utils.Find(m.data, all, req.PersonIds)
	if len(missing) > 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("no id %v in vehicle data", missing))
	}
	excludeStatusMap := map[personv2.Status]struct{}{}
	for _, status := range req.ExcludeStatuses {
		excludeStatusMap[status] = struct{}{}
	}
	res := &personv2.GetPersonsResponse{
		Persons: parallel.GoMapFilter(vehicles, func(v *Vehicle) (*personv2.PersonRuntime, bool) {
			if _, ok := excludeStatusMap[v.Status()]; ok {
				return nil, false
			}
			return v.ToPersonRuntimePb(req.ReturnBase), true
		}),
	}
	return connect.NewResponse(res), nil
}

// GetGlobalStatistics 获取全局统计信息
func (m *VehicleManager) GetGlobalStatistics(ctx context.Context, in *connect.Request[personv2.GetGlobalStatisticsRequest]) (*connect.Response[personv2.GetGlobalStatisticsResponse], error) {
	res := &personv2.GetGlobalStatisticsResponse{
		NumCompletedTrips:          m.snapshot.NumCompletedTrips,
		RunningTotalTravelTime:     m.snapshot.TravelTime,
		RunningTotalTravelDistance: m.snapshot.TravelDistance,
	}
	return connect.NewResponse(res), nil
}
