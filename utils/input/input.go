package input

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/cache"
	"git.fiblab.net/general/common/v2/mongoutil"
	"git.fiblab.net/general/common/v2/protoutil"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/tsinghua-fib-lab/agentsociety-lmrs/utils/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/protobuf/proto"
)

// Input 输入数据
// 说明：没有配置车队时Fleet为空，车辆由demand生成
type Input struct {
	Fleet *personv2.Persons
}

// Init 加载输入数据
// 功能：根据配置从文件或MongoDB（带本地缓存）加载车队
// 参数：c-配置对象，cacheDir-缓存目录
// 返回：输入数据，数据缺失或不合法时返回错误
// 算法说明：
// 1. 文件优先：单个文件或多个文件合并
// 2. 否则从MongoDB下载，逐条检查车辆属性与初始位置，不合法的记录被丢弃并记录日志
// 3. 检查车辆ID不重复
func Init(c config.Config, cacheDir string) (*Input, error) {
	res := &Input{Fleet: &personv2.Persons{Persons: make([]*personv2.Person, 0)}}
	path := c.Input.Vehicle
	if path == nil {
		return res, nil
	}
	if !preCheckCache(cacheDir) {
		cacheDir = ""
	}

	switch {
	case path.File != "":
		var p personv2.Persons
		if err := protoutil.UnmarshalFromFile(&p, path.File); err != nil {
			return nil, fmt.Errorf("failed to load fleet from file: %w", err)
		}
		res.Fleet = &p
	case len(path.Files) > 0:
		for _, file := range path.Files {
			var p personv2.Persons
			if err := protoutil.UnmarshalFromFile(&p, file); err != nil {
				return nil, fmt.Errorf("failed to load fleet from file %s: %w", file, err)
			}
			res.Fleet.Persons = append(res.Fleet.Persons, p.Persons...)
		}
	default:
		var client *mongo.Client
		if c.Input.URI != "" {
			client = mongoutil.NewClient(c.Input.URI)
			defer client.Disconnect(context.Background())
		}
		fleet, err := load[personv2.Persons](client, *path, cacheDir, nil, func(className string, pb any, rawBson bson.Raw) error {
			return checkVehicle(pb.(*personv2.Person), c.Road.Lanes)
		})
		if err != nil {
			return nil, err
		}
		res.Fleet = fleet
	}

	if len(res.Fleet.Persons) == 0 {
		log.Error("no valid vehicles in fleet input")
	}
	ids := make(map[int32]struct{}, len(res.Fleet.Persons))
	for _, p := range res.Fleet.Persons {
		if _, ok := ids[p.Id]; ok {
			return nil, fmt.Errorf("fleet has duplicated id %d", p.Id)
		}
		ids[p.Id] = struct{}{}
	}
	return res, nil
}

// load 从MongoDB或缓存中加载数据
// 参数：client-MongoDB客户端，inputPath-输入路径配置，cacheDir-缓存目录，classNameMapper-类名映射器，handler-逐条检查函数，opts-查询选项
func load[T any, PT interface {
	proto.Message
	*T
}](
	client *mongo.Client,
	inputPath config.InputPath,
	cacheDir string,
	classNameMapper func(string) string,
	handler func(className string, pb any, rawBson bson.Raw) error,
	opts ...*options.FindOptions,
) (PT, error) {
	var downloadFunc func() PT
	if !inputPath.OnlyCache {
		if client == nil {
			return nil, fmt.Errorf("input.uri is required to download %s.%s", inputPath.DB, inputPath.Col)
		}
		coll := mongoutil.GetMongoColl(client, inputPath)
		downloadFunc = func() PT {
			pb, errs := mongoutil.DownloadPbFromMongo[T, PT](context.Background(), coll, classNameMapper, handler, opts...)
			for _, err := range errs {
				log.Warnf("skip record: %v", err)
			}
			return pb
		}
	}
	log.Infof("start fetching from %s.%s", inputPath.DB, inputPath.Col)
	res, err := cache.LoadWithCache(cacheDir, inputPath, downloadFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to load with cache: %w", err)
	}
	log.Infof("finish fetching from %s.%s", inputPath.DB, inputPath.Col)
	return res, nil
}
