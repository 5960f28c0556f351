package utils

// Find 按ID查找数据
// 参数：dataMap-ID到数据的映射，all-全部数据，ids-要查找的ID
// 返回：找到的数据（ids为空时为all）与不存在的ID
func Find[T any](dataMap map[int32]T, all []T, ids []int32) (found []T, missing []int32) {
	if len(ids) == 0 {
		return all, nil
	}
	found = make([]T, 0, len(ids))
	for _, id := range ids {
		if d, ok := dataMap[id]; ok {
			found = append(found, d)
		} else {
			missing = append(missing, id)
		}
	}
	return
}
