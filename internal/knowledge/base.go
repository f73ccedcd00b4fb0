// Copyright 2024 Infra Advisor Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knowledge

// builtinEntries is the static knowledge base content. Entries are authored
// with the most important items first because expertise adaptation truncates
// from the tail.
var builtinEntries = []Entry{
	{
		Domain:       DomainVirtualization,
		Topic:        "vm_provisioning",
		Technologies: []string{"proxmox", "kvm", "qemu", "libvirt"},
		Concepts: map[string]string{
			"hypervisor":     "Software layer that creates and runs virtual machines on a host.",
			"vm_template":    "A preconfigured VM image cloned to produce new guests quickly.",
			"cloud_init":     "First-boot configuration system for injecting users, keys and network settings.",
			"resource_pool":  "Named grouping of compute resources with shared access control.",
			"overcommitment": "Allocating more virtual CPU or memory than physically present.",
		},
		BestPractices: []string{
			"Clone VMs from hardened templates instead of installing from ISO each time",
			"Use cloud-init for repeatable first-boot configuration",
			"Size memory and CPU from measured workload needs, then grow",
			"Keep guest agents installed for clean shutdown and IP reporting",
			"Separate VM disks for OS and data to simplify resizing and backup",
			"Tag VMs with owner and environment for lifecycle tracking",
			"Pin production VMs to resource pools with guaranteed shares",
		},
		SecurityConsiderations: []string{
			"Disable password SSH authentication in templates; use keys only",
			"Isolate the management interface on a dedicated VLAN",
			"Apply host firewall rules before exposing any guest service",
			"Rotate API tokens used by provisioning automation",
			"Audit who can create, clone and delete VMs",
		},
		CommonPatterns: []Guide{
			{"golden_image", "Maintain one hardened template per OS family and rebuild it monthly."},
			{"linked_clones", "Use copy-on-write clones for short-lived test VMs to save storage."},
		},
		TroubleshootingGuides: []Guide{
			{"vm_wont_boot", "Check boot order, attached ISO leftovers, and storage availability on the host."},
			{"no_network", "Verify bridge membership, VLAN tag, and that the guest agent reports an IP."},
			{"slow_disk_io", "Check storage backend latency and whether IO threads or virtio drivers are enabled."},
			{"clone_fails", "Verify the target storage has capacity and the template is not locked by a backup."},
			{"console_unreachable", "Confirm the noVNC/SPICE proxy port is open and the host certificate is valid."},
		},
		ExpertTips: []string{
			"Enable NUMA awareness for VMs larger than one socket",
			"Use CPU pinning and hugepages for latency-sensitive guests",
			"Prefer virtio-scsi with iothread for multi-queue disk workloads",
		},
		RelatedTopics: []string{"live_migration", "vm_backup", "storage_layout", "network_bridging"},
	},
	{
		Domain:       DomainVirtualization,
		Topic:        "live_migration",
		Technologies: []string{"proxmox", "kvm", "vmware", "vsphere"},
		Concepts: map[string]string{
			"live_migration":    "Moving a running VM between hosts without downtime.",
			"shared_storage":    "Storage reachable from all cluster nodes, required for fast migration.",
			"dirty_page_rate":   "How fast guest memory changes; high rates prolong migration.",
			"migration_network": "Dedicated network carrying migration traffic.",
		},
		BestPractices: []string{
			"Use a dedicated migration network separate from guest traffic",
			"Keep CPU types homogeneous or use a common baseline CPU model",
			"Migrate during low dirty-page periods for memory-heavy guests",
			"Verify shared storage health before bulk evacuations",
			"Drain hosts one at a time during maintenance windows",
			"Test failback paths, not just failover",
		},
		SecurityConsiderations: []string{
			"Encrypt migration traffic or confine it to a trusted VLAN",
			"Restrict migration privileges to cluster administrators",
			"Validate host certificates before adding nodes to the cluster",
		},
		CommonPatterns: []Guide{
			{"rolling_maintenance", "Evacuate, patch and rejoin hosts one at a time."},
			{"affinity_rules", "Keep replicated services on separate hosts with anti-affinity."},
		},
		TroubleshootingGuides: []Guide{
			{"migration_stalls", "Check dirty page rate versus migration bandwidth; raise downtime limit or pause the workload."},
			{"cpu_mismatch", "Compare CPU flags between hosts; fall back to a common baseline model."},
			{"storage_not_shared", "Local disks force slower storage migration; move the disk to shared storage first."},
		},
		ExpertTips: []string{
			"Post-copy migration converges stubborn guests at the cost of a failure window",
			"Multiqueue NICs on the migration network materially cut transfer time",
		},
		RelatedTopics: []string{"vm_provisioning", "cluster_quorum", "storage_layout"},
	},
	{
		Domain:       DomainIaC,
		Topic:        "terraform_workflow",
		Technologies: []string{"terraform", "pulumi"},
		Concepts: map[string]string{
			"state":       "Terraform's record of real infrastructure mapped to configuration.",
			"plan":        "Preview of actions Terraform will take to reach the desired state.",
			"module":      "Reusable unit of Terraform configuration with typed inputs and outputs.",
			"provider":    "Plugin that talks to a platform API (Proxmox, AWS, vSphere).",
			"drift":       "Difference between real infrastructure and recorded state.",
		},
		BestPractices: []string{
			"Store state remotely with locking, never in the repository",
			"Review plans before apply; never auto-apply to production",
			"Pin provider and module versions explicitly",
			"Structure code as small modules with typed variables",
			"Run a scheduled plan to detect drift early",
			"Keep secrets out of state by using data sources and environment injection",
			"Use workspaces or directory layout per environment, not branches",
		},
		SecurityConsiderations: []string{
			"Treat state files as secrets; they contain resource attributes and credentials",
			"Scope provider credentials to least privilege per environment",
			"Require code review on any change touching IAM or firewall resources",
			"Sign or checksum module sources pulled from registries",
		},
		CommonPatterns: []Guide{
			{"remote_backend", "S3/Consul/HTTP backend with locking shared by the team."},
			{"module_registry", "Versioned internal modules consumed with explicit version pins."},
		},
		TroubleshootingGuides: []Guide{
			{"state_lock_stuck", "Confirm no apply is running, then force-unlock with the lock ID from the error."},
			{"drift_detected", "Run a targeted plan, decide import versus revert, never hand-edit state."},
			{"provider_auth_fail", "Check credential expiry and endpoint URL before suspecting the provider."},
			{"dependency_cycle", "Break the cycle with explicit depends_on removal or data source indirection."},
		},
		ExpertTips: []string{
			"Use moved blocks for refactors instead of state mv where possible",
			"Partial backends keep credentials for state storage out of the repo",
		},
		RelatedTopics: []string{"ansible_configuration", "ci_pipelines", "secret_management"},
	},
	{
		Domain:       DomainIaC,
		Topic:        "ansible_configuration",
		Technologies: []string{"ansible", "saltstack", "puppet"},
		Concepts: map[string]string{
			"playbook":    "Ordered set of plays mapping host groups to roles and tasks.",
			"inventory":   "Source of managed hosts and their group variables.",
			"idempotency": "Running the same playbook twice yields no further changes.",
			"role":        "Reusable unit bundling tasks, templates, and defaults.",
		},
		BestPractices: []string{
			"Make every task idempotent; avoid shell unless a module exists",
			"Keep inventories per environment with group_vars for shared settings",
			"Encrypt secrets with vault, never commit plaintext",
			"Use roles with semantic defaults and document every variable",
			"Run with --check --diff in CI before any real apply",
			"Tag tasks so partial runs stay predictable",
		},
		SecurityConsiderations: []string{
			"Limit SSH automation users to the commands they need via sudo rules",
			"Encrypt all vault files and rotate the vault password",
			"Pin collection versions to avoid supply-chain surprises",
		},
		CommonPatterns: []Guide{
			{"dynamic_inventory", "Pull hosts from the hypervisor or cloud API instead of static files."},
			{"serial_rollout", "Apply to small batches with serial to bound blast radius."},
		},
		TroubleshootingGuides: []Guide{
			{"unreachable_host", "Verify SSH connectivity and python presence on the target before blaming the playbook."},
			{"handler_not_fired", "Handlers run on change only; check the notifying task actually reported changed."},
			{"slow_runs", "Enable pipelining and fact caching; profile with callback plugins."},
		},
		ExpertTips: []string{
			"Use strategy: free for large fleets where ordering does not matter",
			"Custom facts beat repeated set_fact chains for host-local data",
		},
		RelatedTopics: []string{"terraform_workflow", "golden_images", "secret_management"},
	},
	{
		Domain:       DomainContainers,
		Topic:        "kubernetes_operations",
		Technologies: []string{"kubernetes", "k8s", "helm", "containerd"},
		Concepts: map[string]string{
			"pod":        "Smallest deployable unit; one or more containers sharing a network namespace.",
			"deployment": "Controller keeping a desired number of pod replicas running.",
			"service":    "Stable virtual IP and DNS name in front of a set of pods.",
			"ingress":    "HTTP routing from outside the cluster to services.",
			"namespace":  "Logical partition for resources and access control.",
		},
		BestPractices: []string{
			"Set resource requests and limits on every workload",
			"Use readiness and liveness probes tuned to real startup times",
			"Deploy via declarative manifests or Helm, never kubectl edit",
			"Run at least three control-plane nodes for production",
			"Keep namespaces per team or per application with quotas",
			"Use pod disruption budgets for anything user-facing",
			"Pin image digests, not floating tags, in production",
		},
		SecurityConsiderations: []string{
			"Enable RBAC and audit who holds cluster-admin",
			"Run containers as non-root with a restricted security context",
			"Use network policies to default-deny cross-namespace traffic",
			"Scan images before admission and block critical CVEs",
			"Rotate service account tokens and disable auto-mount where unused",
		},
		CommonPatterns: []Guide{
			{"sidecar", "Attach a helper container (proxy, log shipper) to the application pod."},
			{"operator", "Encode operational knowledge as a controller reconciling custom resources."},
			{"blue_green", "Run two complete versions and switch the service selector."},
		},
		TroubleshootingGuides: []Guide{
			{"crashloop", "Read previous-container logs and check probe timing versus actual startup."},
			{"pending_pods", "Describe the pod; unschedulable usually means resources, taints, or affinity."},
			{"dns_failures", "Test resolution from a debug pod; check CoreDNS load and upstream config."},
			{"oomkilled", "Compare memory limit to working set; raise the limit or fix the leak."},
		},
		ExpertTips: []string{
			"Use priority classes so system workloads evict batch jobs, not vice versa",
			"Topology spread constraints beat pod anti-affinity at scale",
		},
		RelatedTopics: []string{"container_images", "service_mesh", "cluster_autoscaling"},
	},
	{
		Domain:       DomainContainers,
		Topic:        "container_images",
		Technologies: []string{"docker", "podman", "containerd"},
		Concepts: map[string]string{
			"layer":      "Immutable filesystem delta; images are stacks of layers.",
			"registry":   "Service storing and serving container images.",
			"multistage": "Build pattern separating build tooling from the runtime image.",
		},
		BestPractices: []string{
			"Use minimal base images and multi-stage builds",
			"Pin base image digests and rebuild on upstream security updates",
			"One process per container; use an init only when reaping is needed",
			"Order Dockerfile statements for cache efficiency",
			"Label images with source commit and build time",
		},
		SecurityConsiderations: []string{
			"Never bake secrets into layers; they persist in history",
			"Run as a dedicated non-root user declared in the image",
			"Scan images in CI and at admission time",
		},
		CommonPatterns: []Guide{
			{"distroless", "Runtime images with no shell or package manager to shrink attack surface."},
			{"buildcache", "Shared cache mounts for dependency downloads across builds."},
		},
		TroubleshootingGuides: []Guide{
			{"image_too_big", "Inspect layer sizes; move build tooling to an earlier stage."},
			{"pull_denied", "Check registry credentials and repository-level permissions."},
			{"works_locally", "Diff environment variables and mounted paths between local and cluster runs."},
		},
		ExpertTips: []string{
			"Reproducible builds need pinned timestamps and sorted file ordering",
		},
		RelatedTopics: []string{"kubernetes_operations", "ci_pipelines"},
	},
	{
		Domain:       DomainCloud,
		Topic:        "hybrid_connectivity",
		Technologies: []string{"aws", "azure", "gcp", "wireguard", "openvpn"},
		Concepts: map[string]string{
			"site_to_site_vpn": "Encrypted tunnel joining on-premises and cloud networks.",
			"transit_hub":      "Central routing point interconnecting several networks.",
			"egress_cost":      "Per-gigabyte charge for traffic leaving a cloud provider.",
		},
		BestPractices: []string{
			"Plan non-overlapping address space before the first tunnel",
			"Prefer provider-managed VPN or interconnect for production links",
			"Monitor tunnel health and fail over automatically",
			"Model egress costs before moving data-heavy workloads",
			"Keep DNS authoritative in one place with conditional forwarding",
		},
		SecurityConsiderations: []string{
			"Terminate tunnels in a DMZ, not the core network",
			"Use short-lived credentials for cloud APIs; never static root keys",
			"Restrict cloud security groups to known on-premises ranges",
		},
		CommonPatterns: []Guide{
			{"hub_and_spoke", "One transit network carries all cross-site routing and inspection."},
			{"cloud_bursting", "Overflow batch workloads to cloud capacity during peaks."},
		},
		TroubleshootingGuides: []Guide{
			{"tunnel_flapping", "Check rekey timers and MTU; asymmetric MTU silently drops large packets."},
			{"one_way_traffic", "Inspect route tables and security groups on both sides for asymmetry."},
		},
		ExpertTips: []string{
			"Clamp TCP MSS on tunnel interfaces to avoid path MTU blackholes",
		},
		RelatedTopics: []string{"network_segmentation", "dns_architecture", "cost_management"},
	},
	{
		Domain:       DomainSecurity,
		Topic:        "host_hardening",
		Technologies: []string{"proxmox", "kvm", "docker", "kubernetes"},
		Concepts: map[string]string{
			"attack_surface": "The set of reachable interfaces an attacker can probe.",
			"least_privilege": "Every identity holds only the permissions it needs.",
			"defense_in_depth": "Independent layered controls so one failure is not fatal.",
		},
		BestPractices: []string{
			"Disable password SSH login and enforce key or certificate auth",
			"Keep the hypervisor management plane off any user-reachable network",
			"Patch hosts on a fixed cadence with an emergency fast path",
			"Enable and forward audit logs off-host",
			"Remove or disable unused services and kernel modules",
			"Use MFA for every administrative web interface",
		},
		SecurityConsiderations: []string{
			"Enforce least privilege on every management API token",
			"Segment management, storage and guest traffic onto separate VLANs",
			"Verify backups are immutable or offline against ransomware",
			"Alert on new listening ports and new admin accounts",
			"Require signed packages and verified boot where hardware allows",
		},
		CommonPatterns: []Guide{
			{"bastion", "Single audited entry point for administrative SSH."},
			{"break_glass", "Sealed emergency credentials with alerting on use."},
		},
		TroubleshootingGuides: []Guide{
			{"locked_out", "Use the out-of-band console; never weaken SSH config to regain access."},
			{"audit_gaps", "Check log forwarder health and clock sync before assuming tampering."},
		},
		ExpertTips: []string{
			"eBPF-based runtime monitors catch container escapes that file audits miss",
			"Measure patch latency as a security KPI, not just patch coverage",
		},
		RelatedTopics: []string{"secret_management", "network_segmentation", "vm_provisioning"},
	},
	{
		Domain:       DomainSecurity,
		Topic:        "secret_management",
		Technologies: []string{"terraform", "ansible", "kubernetes"},
		Concepts: map[string]string{
			"secret_sprawl": "Credentials scattered across repos, configs and tickets.",
			"dynamic_secret": "Credential generated on demand with a short lifetime.",
			"envelope_encryption": "Data keys wrapped by a master key held in a KMS or HSM.",
		},
		BestPractices: []string{
			"Centralize secrets in one audited store with access policies",
			"Prefer short-lived dynamic credentials over static ones",
			"Rotate anything a leaver could have seen, automatically",
			"Inject secrets at runtime; never bake them into images or state",
			"Audit secret reads, not just writes",
		},
		SecurityConsiderations: []string{
			"Scan repositories and images for committed credentials continuously",
			"Treat CI logs as a secret-leak channel and mask aggressively",
			"Plan revocation paths before an incident, not during one",
		},
		CommonPatterns: []Guide{
			{"sealed_secrets", "Encrypt secrets so only the cluster controller can decrypt them."},
		},
		TroubleshootingGuides: []Guide{
			{"rotation_broke_app", "Check for cached credentials and restart order; stagger rotations."},
		},
		ExpertTips: []string{
			"Transit encryption endpoints let apps encrypt without holding keys",
		},
		RelatedTopics: []string{"host_hardening", "terraform_workflow"},
	},
	{
		Domain:       DomainNetworking,
		Topic:        "network_segmentation",
		Technologies: []string{"pfsense", "haproxy", "nginx", "wireguard"},
		Concepts: map[string]string{
			"vlan":     "Layer-2 broadcast domain separated by tags on shared switches.",
			"dmz":      "Network zone for externally reachable services.",
			"east_west": "Traffic between internal systems, often under-inspected.",
		},
		BestPractices: []string{
			"Segment by trust level: management, storage, guest, DMZ",
			"Default-deny between segments; open specific flows with documentation",
			"Keep the storage network non-routed entirely",
			"Use jump hosts for cross-segment administration",
			"Document every firewall rule with owner and expiry",
		},
		SecurityConsiderations: []string{
			"Block guest-to-management traffic without exception",
			"Inspect east-west traffic, not just the perimeter",
			"Alert on new devices appearing in restricted VLANs",
		},
		CommonPatterns: []Guide{
			{"three_tier", "Web, application and data tiers in separate segments."},
			{"microsegmentation", "Per-workload policies instead of per-subnet rules."},
		},
		TroubleshootingGuides: []Guide{
			{"cross_vlan_fail", "Verify trunk tagging on both switch and hypervisor bridge before touching firewall rules."},
			{"intermittent_drops", "Check for duplicate IPs and asymmetric routing between segments."},
		},
		ExpertTips: []string{
			"VXLAN overlays decouple segmentation from physical switch limits",
		},
		RelatedTopics: []string{"hybrid_connectivity", "dns_architecture", "host_hardening"},
	},
	{
		Domain:       DomainNetworking,
		Topic:        "dns_architecture",
		Technologies: []string{"pfsense", "nginx"},
		Concepts: map[string]string{
			"split_horizon": "Different answers for internal and external clients.",
			"recursive_resolver": "Server that walks the DNS tree on clients' behalf.",
		},
		BestPractices: []string{
			"Run two resolvers minimum; DNS is a single point of failure",
			"Keep internal zones authoritative in one system",
			"Set TTLs deliberately; low for failover records, high for stable ones",
			"Log queries for security visibility with retention limits",
		},
		SecurityConsiderations: []string{
			"Restrict zone transfers to known secondaries",
			"Block direct outbound 53 from guests; force the internal resolver",
		},
		CommonPatterns: []Guide{
			{"service_discovery", "Short-TTL records maintained by automation for service endpoints."},
		},
		TroubleshootingGuides: []Guide{
			{"stale_records", "Check TTL and negative caching before restarting resolvers."},
		},
		ExpertTips: []string{
			"DNSSEC validation failures often surface as intermittent resolution bugs",
		},
		RelatedTopics: []string{"network_segmentation", "hybrid_connectivity"},
	},
	{
		Domain:       DomainMonitoring,
		Topic:        "observability_stack",
		Technologies: []string{"prometheus", "grafana", "zabbix"},
		Concepts: map[string]string{
			"metric":        "Numeric time series describing system behavior.",
			"alert_fatigue": "Desensitization caused by noisy, unactionable alerts.",
			"slo":           "Target reliability level agreed with service consumers.",
		},
		BestPractices: []string{
			"Alert on symptoms users feel, not on every cause",
			"Keep runbooks linked from every alert",
			"Monitor the monitoring: dead-man switches for the alert path",
			"Retain high-resolution metrics short-term, downsample long-term",
			"Track hypervisor, guest and application layers separately",
		},
		SecurityConsiderations: []string{
			"Metrics endpoints leak topology; restrict scrape access",
			"Alerting webhooks carry secrets; store them in the secret manager",
		},
		CommonPatterns: []Guide{
			{"red_method", "Rate, errors, duration per service as the default dashboard."},
			{"use_method", "Utilization, saturation, errors per resource."},
		},
		TroubleshootingGuides: []Guide{
			{"missing_metrics", "Check target discovery and scrape errors before the exporter itself."},
			{"alert_storm", "Group and inhibit downstream alerts; one root cause, one page."},
		},
		ExpertTips: []string{
			"Recording rules keep dashboards fast and queries cheap at scale",
		},
		RelatedTopics: []string{"capacity_planning", "observability_stack"},
	},
	{
		Domain:       DomainMonitoring,
		Topic:        "capacity_planning",
		Technologies: []string{"prometheus", "grafana"},
		Concepts: map[string]string{
			"headroom":    "Spare capacity kept for growth and failure absorption.",
			"growth_rate": "Period-over-period change in resource utilization.",
		},
		BestPractices: []string{
			"Plan for peak plus failure, not average load",
			"Review utilization trends monthly with the same queries",
			"Keep one node of headroom so any host can fail",
			"Model storage growth separately from compute",
		},
		SecurityConsiderations: []string{
			"Capacity exhaustion is an availability attack vector; rate-limit self-service provisioning",
		},
		CommonPatterns: []Guide{
			{"n_plus_one", "Size clusters to survive one node failure at peak load."},
		},
		TroubleshootingGuides: []Guide{
			{"sudden_growth", "Correlate with deployments and backup schedules before buying hardware."},
		},
		ExpertTips: []string{
			"Percentile-based forecasts beat mean-based ones for bursty workloads",
		},
		RelatedTopics: []string{"observability_stack", "vm_provisioning"},
	},
	{
		Domain:       DomainSystemEngineering,
		Topic:        "automation_foundations",
		Technologies: []string{"ansible", "terraform", "jenkins", "gitlab"},
		Concepts: map[string]string{
			"runbook":     "Documented, ideally executable, operational procedure.",
			"toil":        "Manual, repetitive operational work automation should absorb.",
			"gitops":      "Declared desired state in git, reconciled automatically.",
		},
		BestPractices: []string{
			"Automate the runbook you just executed manually twice",
			"Version every script and config; no snowflake hosts",
			"Make automation idempotent and safe to re-run",
			"Prefer declarative desired state over imperative scripts",
			"Measure toil and report it like a defect count",
		},
		SecurityConsiderations: []string{
			"Automation credentials are the crown jewels; vault and rotate them",
			"Require review for changes to automation that touches production",
		},
		CommonPatterns: []Guide{
			{"pipeline_gate", "Human approval step between plan and apply for production."},
		},
		TroubleshootingGuides: []Guide{
			{"flaky_automation", "Hunt for hidden ordering assumptions and unpinned dependencies."},
		},
		ExpertTips: []string{
			"Event-driven automation needs idempotency even more than scheduled jobs",
		},
		RelatedTopics: []string{"terraform_workflow", "ansible_configuration", "ci_pipelines"},
	},
	{
		Domain:       DomainSystemEngineering,
		Topic:        "backup_strategy",
		Technologies: []string{"proxmox", "zfs", "ceph"},
		Concepts: map[string]string{
			"three_two_one": "Three copies, two media, one offsite.",
			"rpo":           "Maximum acceptable data loss window.",
			"rto":           "Maximum acceptable restore time.",
		},
		BestPractices: []string{
			"Define RPO and RTO per workload before choosing tooling",
			"Test restores on a schedule; an untested backup is a hope",
			"Keep at least one copy offline or immutable",
			"Back up configuration and secrets, not only data disks",
			"Monitor backup job failures as an alerting priority",
		},
		SecurityConsiderations: []string{
			"Isolate backup credentials from production admin credentials",
			"Encrypt backups at rest and in transit",
			"Immutable snapshots blunt ransomware against the backup tier",
		},
		CommonPatterns: []Guide{
			{"snapshot_then_copy", "Local snapshot for fast restore plus replicated copy for disasters."},
		},
		TroubleshootingGuides: []Guide{
			{"restore_too_slow", "Measure restore path bandwidth; RTO math usually fails on the network, not the disk."},
		},
		ExpertTips: []string{
			"ZFS send/receive resume tokens survive flaky WAN links",
		},
		RelatedTopics: []string{"storage_layout", "host_hardening"},
	},
}
