/*
Package aws implements the provider gateway against the AWS Auto Scaling,
EC2, and Elastic Load Balancing services using aws-sdk-go-v2.

Group snapshots are assembled from DescribeAutoScalingGroups pages plus
per-group detail queries: lifecycle hooks, EC2 launch times (filtered by
instance id so vanished instances are absent rather than errors), target
group health, and classic load balancer health. Launch template versions
"$Latest" and "$Default" are resolved to concrete version numbers so member
fingerprints compare by plain equality.

Transient failures are retried by the SDK's standard retryer with a bounded
attempt count; throttling that survives the retries is reported as
provider.ErrThrottled. Every call is counted in metrics by operation and
status.

Service clients are consumed through narrow interfaces so tests can stub
them without network access.
*/
package aws
