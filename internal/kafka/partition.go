package kafka

import (
	"fmt"
	"sort"
	"strings"

	"github.com/IBM/sarama"
)

// PartitionFor returns the partition the producer's hash partitioner picks
// for key on a topic with numPartitions partitions.
func PartitionFor(topic, key string, numPartitions int32) (int32, error) {
	if numPartitions <= 0 {
		return 0, fmt.Errorf("topic %s must have at least one partition", topic)
	}
	partitioner := sarama.NewHashPartitioner(topic)
	return partitioner.Partition(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
	}, numPartitions)
}

// PartitionAnalyzer tallies where a batch of keys would land.
type PartitionAnalyzer struct {
	numPartitions int32
	counts        map[string]map[int32]int
}

func NewPartitionAnalyzer(numPartitions int32) *PartitionAnalyzer {
	return &PartitionAnalyzer{
		numPartitions: numPartitions,
		counts:        make(map[string]map[int32]int),
	}
}

// Add records key on topic and returns the partition it maps to.
func (p *PartitionAnalyzer) Add(topic, key string) (int32, error) {
	partition, err := PartitionFor(topic, key, p.numPartitions)
	if err != nil {
		return 0, err
	}
	if p.counts[topic] == nil {
		p.counts[topic] = make(map[int32]int)
	}
	p.counts[topic][partition]++
	return partition, nil
}

func (p *PartitionAnalyzer) Distribution(topic string) map[int32]int {
	return p.counts[topic]
}

// Summary renders the per-topic distribution, topics and partitions sorted.
func (p *PartitionAnalyzer) Summary() string {
	if len(p.counts) == 0 {
		return "No events analyzed"
	}

	topics := make([]string, 0, len(p.counts))
	for topic := range p.counts {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	var b strings.Builder
	for _, topic := range topics {
		dist := p.counts[topic]
		total := 0
		partitions := make([]int32, 0, len(dist))
		for partition, count := range dist {
			total += count
			partitions = append(partitions, partition)
		}
		sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

		fmt.Fprintf(&b, "%s: %d events\n", topic, total)
		for _, partition := range partitions {
			count := dist[partition]
			fmt.Fprintf(&b, "  partition %d: %d events (%.2f%%)\n",
				partition, count, float64(count)/float64(total)*100)
		}
	}
	return b.String()
}
